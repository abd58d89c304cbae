// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package task

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZSC714725/episodegrab/internal/discovery"
	"github.com/ZSC714725/episodegrab/internal/logger"
	"github.com/ZSC714725/episodegrab/internal/process"
	"github.com/ZSC714725/episodegrab/internal/progress"

	"github.com/lithammer/shortuuid/v4"
)

// State of an episode download
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
	StateCancelled State = "cancelled"
)

// IsFinal reports whether the state can no longer change
func (s State) IsFinal() bool {
	switch s {
	case StateFinished, StateFailed, StateSkipped, StateCancelled:
		return true
	}
	return false
}

// Task is the download of one episode
type Task struct {
	ID        string
	Reference string
	Episode   discovery.Episode
	Output    string
	CreatedAt int64

	lock      sync.RWMutex
	updatedAt int64
	state     State
	err       string
	stream    string
	proc      process.Process
	tracker   *progress.Tracker
}

// State returns the current state
func (t *Task) State() State {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.state
}

// Reason returns why the task failed
func (t *Task) Reason() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.err
}

// UpdatedAt returns the unix time of the last state change
func (t *Task) UpdatedAt() int64 {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.updatedAt
}

// Stream returns the stream address being copied
func (t *Task) Stream() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.stream
}

// Attach binds the FFmpeg process and its progress tracker to the task
func (t *Task) Attach(stream string, proc process.Process, tracker *progress.Tracker) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.stream = stream
	t.proc = proc
	t.tracker = tracker
}

// Progress returns the tracker snapshot, false if nothing ran yet
func (t *Task) Progress() (progress.Snapshot, bool) {
	t.lock.RLock()
	tracker := t.tracker
	t.lock.RUnlock()

	if tracker == nil {
		return progress.Snapshot{}, false
	}
	return tracker.Snapshot(), true
}

// Status returns the process status, false if nothing ran yet
func (t *Task) Status() (process.Status, bool) {
	t.lock.RLock()
	proc := t.proc
	t.lock.RUnlock()

	if proc == nil {
		return process.Status{}, false
	}
	return proc.Status(), true
}

// Log returns the last lines written by FFmpeg
func (t *Task) Log() []process.Line {
	t.lock.RLock()
	proc := t.proc
	t.lock.RUnlock()

	if proc == nil {
		return nil
	}
	return proc.Log()
}

// IsRunning returns whether FFmpeg is running for this task
func (t *Task) IsRunning() bool {
	t.lock.RLock()
	proc := t.proc
	t.lock.RUnlock()

	return proc != nil && proc.IsRunning()
}

func (t *Task) setState(state State, reason string) (State, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	from := t.state
	if from.IsFinal() {
		return from, fmt.Errorf("%w: %s is %s", ErrFinalState, t.ID, from)
	}

	t.state = state
	t.err = reason
	t.updatedAt = time.Now().Unix()
	return from, nil
}

// Store manages tasks in memory
type Store interface {
	Add(ep discovery.Episode, output string) (*Task, error)
	Get(id string) (*Task, error)
	List(ids []string, reference string) []*Task
	Update(id string, state State, cause error) error
	Cancel(id string) error
	Delete(id string) error
}

type store struct {
	logger logger.Logger
	tasks  map[string]*Task
	lock   sync.RWMutex
}

// NewStore creates a task store
func NewStore(log logger.Logger) Store {
	if log == nil {
		log = logger.Nop()
	}
	return &store{
		logger: log,
		tasks:  make(map[string]*Task),
	}
}

func (s *store) Add(ep discovery.Episode, output string) (*Task, error) {
	if ep.Show == "" || ep.Season <= 0 || ep.Episode <= 0 {
		return nil, ErrInvalidEpisode
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	// 同一集只能有一个未结束的任务
	for _, t := range s.tasks {
		if t.Reference == ep.Show && t.Episode == ep && !t.State().IsFinal() {
			return nil, fmt.Errorf("%w: %s %s", ErrTaskExists, ep.Show, ep.Code())
		}
	}

	now := time.Now().Unix()
	t := &Task{
		ID:        shortuuid.New(),
		Reference: ep.Show,
		Episode:   ep,
		Output:    output,
		CreatedAt: now,
		updatedAt: now,
		state:     StateQueued,
	}
	s.tasks[t.ID] = t

	return t, nil
}

func (s *store) Get(id string) (*Task, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns the matching tasks ordered by show, season and episode
func (s *store) List(ids []string, reference string) []*Task {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var out []*Task
	for _, t := range s.tasks {
		if len(reference) > 0 && t.Reference != reference {
			continue
		}
		if len(ids) > 0 {
			found := false
			for _, id := range ids {
				if t.ID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Episode, out[j].Episode
		if a.Show != b.Show {
			return a.Show < b.Show
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		if a.Episode != b.Episode {
			return a.Episode < b.Episode
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})

	return out
}

func (s *store) Update(id string, state State, cause error) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	from, err := t.setState(state, reason)
	if err != nil {
		return err
	}

	if from != state {
		s.logger.Debug("task %s (%s %s) %s -> %s", id, t.Reference, t.Episode.Code(), from, state)
	}
	return nil
}

// Cancel stops FFmpeg if it runs and marks the task cancelled
func (s *store) Cancel(id string) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}

	if _, err := t.setState(StateCancelled, ""); err != nil {
		return err
	}

	if t.IsRunning() {
		t.lock.RLock()
		proc := t.proc
		t.lock.RUnlock()
		if err := proc.Stop(true); err != nil {
			s.logger.Warn("stopping task %s: %s", id, err)
		}
	}

	s.logger.Info("task %s (%s %s) cancelled", id, t.Reference, t.Episode.Code())
	return nil
}

func (s *store) Delete(id string) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}

	if !t.State().IsFinal() {
		if err := s.Cancel(id); err != nil && !errors.Is(err, ErrFinalState) {
			return err
		}
	}

	s.lock.Lock()
	delete(s.tasks, id)
	s.lock.Unlock()
	return nil
}
