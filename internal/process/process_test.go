package process

import (
	"bufio"
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineCollector struct {
	mu    sync.Mutex
	lines []string
	ret   uint64
}

func (c *lineCollector) Parse(line string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return c.ret
}

func (c *lineCollector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func skipWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
}

func shell(t *testing.T, script string, parser Parser, stale time.Duration) Process {
	t.Helper()
	p, err := New(Config{
		Binary:       "/bin/sh",
		Args:         []string{"-c", script},
		Parser:       parser,
		StaleTimeout: stale,
		LogLines:     10,
	})
	require.NoError(t, err)
	return p
}

func TestScanLine(t *testing.T) {
	input := "first\nsecond\r\nthird\rfourth\r\r\nlast"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanLine)

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"first", "second", "third", "fourth", "last"}, got)
}

func TestSkipLongLines(t *testing.T) {
	input := "short\n" + strings.Repeat("x", 100) + "\rafter\n" + strings.Repeat("y", 40) + "\nlast"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Buffer(make([]byte, 0, 8), 64)
	drops := 0
	scanner.Split(skipLongLines(32, func() { drops++ }))

	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"short", "after", "last"}, got)
	assert.Equal(t, 2, drops)
}

func TestNewRequiresBinary(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestWaitBeforeStart(t *testing.T) {
	p, err := New(Config{Binary: "/bin/true"})
	require.NoError(t, err)
	assert.Error(t, p.Wait(context.Background()))
	assert.Equal(t, "finished", p.Status().State)
}

func TestProcessFeedsParser(t *testing.T) {
	skipWindows(t)

	c := &lineCollector{ret: 1}
	exited := make(chan error, 1)
	p, err := New(Config{
		Binary: "/bin/sh",
		Args:   []string{"-c", `printf 'Duration: 00:00:01.00\nsize=1KiB time=00:00:00.50\rsize=2KiB time=00:00:01.00\n' 1>&2`},
		Parser: c,
		OnExit: func(err error) { exited <- err },
	})
	require.NoError(t, err)

	require.NoError(t, p.Start())
	require.NoError(t, p.Wait(context.Background()))

	want := []string{"Duration: 00:00:01.00", "size=1KiB time=00:00:00.50", "size=2KiB time=00:00:01.00"}
	assert.Equal(t, want, c.all())

	var logged []string
	for _, l := range p.Log() {
		logged = append(logged, l.Data)
	}
	assert.Equal(t, want, logged)

	assert.False(t, p.IsRunning())
	s := p.Status()
	assert.Equal(t, "finished", s.State)
	assert.Equal(t, uint64(1), s.States.Finished)

	select {
	case err := <-exited:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("OnExit not called")
	}
}

func TestProcessSurvivesHugeLine(t *testing.T) {
	skipWindows(t)

	c := &lineCollector{ret: 1}
	script := `echo before 1>&2; head -c 2097152 /dev/zero | tr '\0' a 1>&2; printf '\nsize=1KiB time=00:00:01.00\n' 1>&2`
	p := shell(t, script, c, 0)
	require.NoError(t, p.Start())
	require.NoError(t, p.Wait(context.Background()))

	assert.Equal(t, []string{"before", "size=1KiB time=00:00:01.00"}, c.all())
}

func TestProcessLogKeepsTail(t *testing.T) {
	skipWindows(t)

	p := shell(t, `for i in 1 2 3 4 5 6 7 8 9 10 11 12; do echo "line $i" 1>&2; done`, nil, 0)
	require.NoError(t, p.Start())
	require.NoError(t, p.Wait(context.Background()))

	log := p.Log()
	require.Len(t, log, 10)
	assert.Equal(t, "line 3", log[0].Data)
	assert.Equal(t, "line 12", log[9].Data)
}

func TestProcessExitCode(t *testing.T) {
	skipWindows(t)

	p := shell(t, "echo boom 1>&2; exit 3", nil, 0)
	require.NoError(t, p.Start())

	err := p.Wait(context.Background())
	var ee *ExitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 3, ee.Code)
	assert.Equal(t, "failed", p.Status().State)
}

func TestProcessCancel(t *testing.T) {
	skipWindows(t)

	p := shell(t, "exec sleep 30", nil, 0)
	require.NoError(t, p.Start())
	assert.True(t, p.IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, ErrStopped)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, "killed", p.Status().State)
}

func TestProcessStale(t *testing.T) {
	skipWindows(t)

	c := &lineCollector{ret: 0}
	p := shell(t, "echo waiting 1>&2; exec sleep 30", c, time.Second)
	require.NoError(t, p.Start())

	err := p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, []string{"waiting"}, c.all())
}

func TestProcessMissingBinary(t *testing.T) {
	p, err := New(Config{Binary: "/nonexistent/ffmpeg"})
	require.NoError(t, err)

	startErr := p.Start()
	require.Error(t, startErr)
	assert.Equal(t, startErr, p.Wait(context.Background()))
	assert.Equal(t, "failed", p.Status().State)
}

func TestSysMonitor(t *testing.T) {
	skipWindows(t)

	m := NewSysMonitor()
	cpu, mem := m.Current()
	assert.Zero(t, cpu)
	assert.Zero(t, mem)

	p := shell(t, "exec sleep 30", nil, 0)
	p.(*process).monitor = m
	require.NoError(t, p.Start())
	defer p.Stop(true)

	_, mem = m.Current()
	assert.NotZero(t, mem)
}
