// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具
//
// Package process wraps exec.Cmd for controlling an FFmpeg process.

package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

var (
	ErrStopped = errors.New("process stopped")
	ErrKilled  = errors.New("process killed")
	ErrStale   = errors.New("process stale: no progress reported")
)

// ExitError is returned by Wait when the process exited with a non-zero code
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}

// Process represents a process
type Process interface {
	Status() Status
	Start() error
	Stop(wait bool) error
	Wait(ctx context.Context) error
	IsRunning() bool
	Log() []Line
}

// Config for a process
type Config struct {
	Binary        string
	Args          []string
	Env           []string
	StaleTimeout  time.Duration
	LogLines      int
	Parser        Parser
	Monitor       Monitor
	OnStart       func()
	OnExit        func(err error)
	OnStateChange func(from, to string)
	Logger        Logger
}

// Status of a process
type Status struct {
	State    string
	States   States
	Order    string
	Pid      int
	Duration time.Duration
	Time     time.Time
	CPU      float64
	Memory   uint64
}

// States cumulative counts
type States struct {
	Finished  uint64
	Starting  uint64
	Running   uint64
	Finishing uint64
	Failed    uint64
	Killed    uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateFinished  stateType = "finished"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

type process struct {
	binary string
	args   []string
	env    []string
	cmd    *exec.Cmd
	pid    int
	stderr io.ReadCloser

	state struct {
		state  stateType
		time   time.Time
		states States
		lock   sync.Mutex
	}
	order struct {
		order string
		lock  sync.Mutex
	}
	exit struct {
		done chan struct{}
		err  error
		lock sync.Mutex
	}
	parser Parser
	log    *logRing
	stale  struct {
		last    time.Time
		timeout time.Duration
		fired   bool
		cancel  context.CancelFunc
		lock    sync.Mutex
	}
	killTimer     *time.Timer
	killTimerLock sync.Mutex
	logger        Logger
	monitor       Monitor
	callbacks     struct {
		onStart       func()
		onExit        func(err error)
		onStateChange func(from, to string)
		lock          sync.Mutex
	}
}

// New creates a new process
func New(config Config) (Process, error) {
	p := &process{
		binary:  config.Binary,
		args:    config.Args,
		env:     config.Env,
		parser:  config.Parser,
		logger:  config.Logger,
		monitor: config.Monitor,
		log:     newLogRing(config.LogLines),
	}

	if len(p.binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	if p.parser == nil {
		p.parser = &nullParser{}
	}

	if p.logger == nil {
		p.logger = &nopLogger{}
	}

	if p.monitor == nil {
		p.monitor = NewNullMonitor()
	}

	p.order.order = "stop"
	p.initState(stateFinished)
	p.stale.last = time.Now()
	p.stale.timeout = config.StaleTimeout
	p.callbacks.onStart = config.OnStart
	p.callbacks.onExit = config.OnExit
	p.callbacks.onStateChange = config.OnStateChange

	return p, nil
}

func (p *process) initState(state stateType) {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	p.state.state = state
	p.state.time = time.Now()
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prevState := p.state.state
	failed := false

	switch p.state.state {
	case stateFinished, stateFailed, stateKilled:
		if state == stateStarting {
			p.state.state = state
			p.state.states.Starting++
		} else {
			failed = true
		}
	case stateStarting:
		switch state {
		case stateRunning:
			p.state.state = state
			p.state.states.Running++
		case stateFailed:
			p.state.state = state
			p.state.states.Failed++
		default:
			failed = true
		}
	case stateRunning, stateFinishing:
		switch state {
		case stateFinishing:
			if p.state.state == stateFinishing {
				failed = true
				break
			}
			p.state.state = state
			p.state.states.Finishing++
		case stateFinished:
			p.state.state = state
			p.state.states.Finished++
		case stateFailed:
			p.state.state = state
			p.state.states.Failed++
		case stateKilled:
			p.state.state = state
			p.state.states.Killed++
		default:
			failed = true
		}
	default:
		return fmt.Errorf("unhandled state: %s", p.state.state)
	}

	if failed {
		return fmt.Errorf("can't change from %s to %s", p.state.state, state)
	}

	p.state.time = time.Now()
	if p.callbacks.onStateChange != nil {
		go p.callbacks.onStateChange(prevState.String(), p.state.state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) isRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Status() Status {
	cpu, memory := p.monitor.Current()

	p.state.lock.Lock()
	stateTime := p.state.time
	stateString := p.state.state.String()
	states := p.state.states
	p.state.lock.Unlock()

	p.order.lock.Lock()
	order := p.order.order
	pid := p.pid
	p.order.lock.Unlock()

	return Status{
		State:    stateString,
		States:   states,
		Order:    order,
		Pid:      pid,
		Duration: time.Since(stateTime),
		Time:     stateTime,
		CPU:      cpu,
		Memory:   memory,
	}
}

func (p *process) IsRunning() bool {
	return p.isRunning()
}

func (p *process) Log() []Line {
	return p.log.lines()
}

func (p *process) Start() error {
	p.order.lock.Lock()
	defer p.order.lock.Unlock()

	if p.order.order == "start" {
		return nil
	}
	p.order.order = "start"
	return p.start()
}

func (p *process) start() error {
	if p.isRunning() {
		return nil
	}

	p.setState(stateStarting)
	p.log.reset()

	done := make(chan struct{})
	p.exit.lock.Lock()
	p.exit.done = done
	p.exit.err = nil
	p.exit.lock.Unlock()

	var err error
	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.Env = p.env

	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		p.fail(err)
		return err
	}

	if err := p.cmd.Start(); err != nil {
		p.fail(err)
		return err
	}

	p.pid = p.cmd.Process.Pid
	if err := p.monitor.Start(p.pid); err != nil {
		p.logger.Debug("monitor pid %d: %v", p.pid, err)
	}

	p.setState(stateRunning)
	p.logger.Debug("started %s (pid %d)", p.binary, p.pid)

	if p.callbacks.onStart != nil {
		go p.callbacks.onStart()
	}

	p.stale.lock.Lock()
	p.stale.fired = false
	p.stale.last = time.Now()
	if p.stale.timeout != 0 {
		ctx, cancel := context.WithCancel(context.Background())
		p.stale.cancel = cancel
		go p.staler(ctx)
	}
	p.stale.lock.Unlock()

	go p.reader()

	return nil
}

// fail finishes a start attempt that never produced a running process
func (p *process) fail(err error) {
	p.setState(stateFailed)
	p.log.add(err.Error())
	p.order.order = "stop"
	p.finish(err)
}

func (p *process) finish(err error) {
	p.exit.lock.Lock()
	p.exit.err = err
	done := p.exit.done
	p.exit.lock.Unlock()

	p.callbacks.lock.Lock()
	if p.callbacks.onExit != nil {
		go p.callbacks.onExit(err)
	}
	p.callbacks.lock.Unlock()

	close(done)
}

func (p *process) Stop(wait bool) error {
	p.order.lock.Lock()
	if p.order.order == "stop" {
		p.order.lock.Unlock()
		return nil
	}
	p.order.order = "stop"
	err := p.stop()
	p.order.lock.Unlock()

	if err == nil && wait {
		p.exit.lock.Lock()
		done := p.exit.done
		p.exit.lock.Unlock()
		if done != nil {
			<-done
		}
	}
	return err
}

// stop interrupts the process and kills it if it is still alive after 5s.
// The caller holds the order lock.
func (p *process) stop() error {
	if !p.isRunning() {
		return nil
	}
	if p.getState() == stateFinishing {
		return nil
	}

	p.setState(stateFinishing)

	var err error
	if runtime.GOOS == "windows" {
		err = p.cmd.Process.Kill()
	} else {
		err = p.cmd.Process.Signal(os.Interrupt)
		if err != nil {
			err = p.cmd.Process.Kill()
		} else {
			cmd := p.cmd
			p.killTimerLock.Lock()
			p.killTimer = time.AfterFunc(5*time.Second, func() {
				cmd.Process.Kill()
			})
			p.killTimerLock.Unlock()
		}
	}

	if err != nil {
		p.log.add(err.Error())
	}
	return err
}

// Wait blocks until the process exits. Cancelling ctx stops the process.
func (p *process) Wait(ctx context.Context) error {
	p.exit.lock.Lock()
	done := p.exit.done
	p.exit.lock.Unlock()

	if done == nil {
		return fmt.Errorf("process not started")
	}

	select {
	case <-done:
	case <-ctx.Done():
		p.Stop(true)
		<-done
	}

	p.exit.lock.Lock()
	defer p.exit.lock.Unlock()
	return p.exit.err
}

func (p *process) staler(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.stale.lock.Lock()
			last := p.stale.last
			timeout := p.stale.timeout
			p.stale.lock.Unlock()

			if t.Sub(last) > timeout {
				p.logger.Error("no progress for %s, stopping pid %d", timeout, p.pid)
				p.stale.lock.Lock()
				p.stale.fired = true
				p.stale.lock.Unlock()

				p.order.lock.Lock()
				p.stop()
				p.order.lock.Unlock()
				return
			}
		}
	}
}

func (p *process) reader() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*maxLineLength)
	scanner.Split(skipLongLines(maxLineLength, func() {
		p.logger.Debug("pid %d: dropping output line longer than %d bytes", p.pid, maxLineLength)
	}))

	for scanner.Scan() {
		line := scanner.Text()
		p.log.add(line)
		if n := p.parser.Parse(line); n != 0 {
			p.stale.lock.Lock()
			p.stale.last = time.Now()
			p.stale.lock.Unlock()
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Debug("reading output of pid %d: %v", p.pid, err)
		io.Copy(io.Discard, p.stderr)
	}

	p.waiter()
}

func (p *process) waiter() {
	var exitErr error
	waitErr := p.cmd.Wait()

	p.order.lock.Lock()
	stopped := p.order.order == "stop"
	p.order.order = "stop"
	p.order.lock.Unlock()

	p.stale.lock.Lock()
	stale := p.stale.fired
	if p.stale.cancel != nil {
		p.stale.cancel()
		p.stale.cancel = nil
	}
	p.stale.lock.Unlock()

	switch {
	case stale:
		p.setState(stateFailed)
		exitErr = ErrStale
	case stopped:
		p.setState(stateKilled)
		exitErr = ErrStopped
	case waitErr == nil:
		p.setState(stateFinished)
	default:
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) {
			if status, ok := ee.Sys().(syscall.WaitStatus); ok && !status.Exited() {
				p.setState(stateKilled)
				exitErr = ErrKilled
				break
			}
			p.setState(stateFailed)
			exitErr = &ExitError{Code: ee.ExitCode()}
		} else {
			p.setState(stateKilled)
			exitErr = fmt.Errorf("%w: %v", ErrKilled, waitErr)
		}
	}

	p.monitor.Stop()

	p.killTimerLock.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	p.killTimerLock.Unlock()

	p.logger.Debug("pid %d exited: %v", p.pid, exitErr)
	p.finish(exitErr)
}

// maxLineLength caps a single line of output. Longer lines are skipped.
const maxLineLength = 512 * 1024

// skipLongLines wraps scanLine. A line growing past max bytes is dropped up
// to its next CR or LF and scanning resumes after it.
func skipLongLines(max int, dropped func()) bufio.SplitFunc {
	skipping := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		skipped := 0
		if skipping {
			i := bytes.IndexAny(data, "\r\n")
			if i < 0 {
				return len(data), nil, nil
			}
			skipping = false
			skipped = i
			data = data[i:]
		}

		advance, token, err := scanLine(data, atEOF)
		if token == nil && err == nil && !atEOF && len(data)-advance >= max {
			skipping = true
			if dropped != nil {
				dropped()
			}
			return skipped + len(data), nil, nil
		}
		return skipped + advance, token, err
	}
}

// scanLine splits on CR or LF, FFmpeg redraws its stats line with CR.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
