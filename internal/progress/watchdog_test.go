package progress

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/ZSC714725/episodegrab/internal/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithTracker(t *testing.T, script string) (*Tracker, error) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}

	tr := New(Config{})
	p, err := process.New(process.Config{
		Binary:       "/bin/sh",
		Args:         []string{"-c", script},
		Parser:       tr,
		StaleTimeout: 1500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, p.Start())
	return tr, p.Wait(context.Background())
}

func TestTrackerKeepsProcessAliveWithoutBitrate(t *testing.T) {
	tr, err := runWithTracker(t, `echo '  Duration: 00:10:00.00, start: 0' 1>&2
for i in 1 2 3 4 5 6 7; do echo "size=${i}00KiB time=00:00:0${i}.00" 1>&2; sleep 0.5; done`)

	require.NoError(t, err)
	s := tr.Snapshot()
	assert.Equal(t, PhaseAwaitingBitrate, s.Phase)
	assert.Zero(t, s.Samples)
}

func TestTrackerKeepsProcessAliveAfterComplete(t *testing.T) {
	tr, err := runWithTracker(t, `echo '  Duration: 00:00:01.00, start: 0' 1>&2
echo '      variant_bitrate : 8000000' 1>&2
echo 'size=1000KiB time=00:00:01.00' 1>&2
for i in 1 2 3 4 5 6 7; do echo "size=1${i}00KiB time=00:00:01.00" 1>&2; sleep 0.5; done`)

	require.NoError(t, err)
	assert.True(t, tr.Complete())
}
