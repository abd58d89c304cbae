// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具
//
// Package progress turns FFmpeg stderr into a percentage and an ETA.
//
// A Tracker is created per FFmpeg invocation and fed one line at a time.
// It learns the total duration ("first wins") and the HLS variant bitrate
// ("last wins") from the log preamble, then derives the percentage from each
// progress sample and the ETA from the difference between two samples.
// Nothing the tracker does can fail the transcode: unparsable lines are
// logged at debug level and dropped.

package progress

import (
	"math"
	"sync"

	"github.com/ZSC714725/episodegrab/internal/ffmpeg/parse"
	"github.com/ZSC714725/episodegrab/internal/logger"
	"github.com/ZSC714725/episodegrab/internal/process"
)

// BarWidth is the number of cells in the progress bar
const BarWidth = 50

// DefaultRemaining is shown until an ETA can be computed
const DefaultRemaining = "00:00:00"

// Phase of a tracker
type Phase string

const (
	PhaseAwaitingDuration Phase = "awaiting_duration"
	PhaseAwaitingBitrate  Phase = "awaiting_bitrate"
	PhaseStreaming        Phase = "streaming"
	PhaseComplete         Phase = "complete"
)

// Config for a tracker
type Config struct {
	Observer Observer
	Logger   logger.Logger

	// BarBeforeBitrate accepts progress samples as soon as the duration is
	// known. The ETA keeps its previous value until a bitrate arrives.
	BarBeforeBitrate bool
}

// Snapshot is a copy of the tracker state
type Snapshot struct {
	Phase         Phase
	Duration      parse.Timestamp
	DurationKnown bool
	BitsPerSecond int64
	BitrateKnown  bool
	Percent       float64
	Remaining     string
	Last          Sample
	Samples       uint64
}

// Tracker holds the state of one FFmpeg run
type Tracker struct {
	observer         Observer
	logger           logger.Logger
	barBeforeBitrate bool

	lock sync.Mutex

	duration    parse.Timestamp
	hasDuration bool
	bitrate     int64
	hasBitrate  bool
	last        Sample
	hasLast     bool
	remaining   string
	percent     float64
	samples     uint64
	complete    bool
}

var _ process.Parser = (*Tracker)(nil)

// New creates a tracker
func New(config Config) *Tracker {
	t := &Tracker{
		observer:         config.Observer,
		logger:           config.Logger,
		barBeforeBitrate: config.BarBeforeBitrate,
		remaining:        DefaultRemaining,
	}
	if t.observer == nil {
		t.observer = Multi()
	}
	if t.logger == nil {
		t.logger = logger.Nop()
	}
	return t
}

// Parse implements process.Parser. Every size=/time= line counts as
// progress for the stale watchdog, accepted or not.
func (t *Tracker) Parse(line string) uint64 {
	if _, sample := t.consume(line); sample {
		return 1
	}
	return 0
}

// ConsumeLine applies one line of FFmpeg output and reports whether it
// carried an accepted progress sample.
func (t *Tracker) ConsumeLine(line string) bool {
	accepted, _ := t.consume(line)
	return accepted
}

func (t *Tracker) consume(line string) (accepted, sample bool) {
	facts, err := parse.Classify(line)
	if err != nil {
		t.logger.Debug("dropping line: %v", err)
	}
	if len(facts) == 0 {
		return false, false
	}

	var events []Event
	for _, f := range facts {
		if _, ok := f.(parse.ProgressFact); ok {
			sample = true
		}
	}

	t.lock.Lock()
	if !t.complete {
		for _, f := range facts {
			switch f := f.(type) {
			case parse.DurationFact:
				events = append(events, t.applyDuration(f)...)
			case parse.BitrateFact:
				if f.BitsPerSecond <= 0 {
					t.logger.Debug("ignoring zero bitrate")
					continue
				}
				t.bitrate = f.BitsPerSecond
				t.hasBitrate = true
			case parse.ProgressFact:
				ev, ok := t.applySample(Sample{Time: f.Time, KiB: f.KiB})
				events = append(events, ev...)
				accepted = accepted || ok
			}
		}
	}
	t.lock.Unlock()

	for _, e := range events {
		t.observer.Observe(e)
	}
	return accepted, sample
}

func (t *Tracker) applyDuration(f parse.DurationFact) []Event {
	if t.hasDuration {
		return nil
	}
	if f.Total.IsZero() {
		t.logger.Debug("ignoring zero duration")
		return nil
	}
	t.duration = f.Total
	t.hasDuration = true
	return []Event{{Kind: EventDuration, Duration: f.Total}}
}

func (t *Tracker) applySample(s Sample) ([]Event, bool) {
	if !t.hasDuration {
		return nil, false
	}
	if !t.hasBitrate && !t.barBeforeBitrate {
		return nil, false
	}

	pct := math.Min(100, 100*float64(s.Time.Milliseconds())/float64(t.duration.Milliseconds()))
	remaining := t.remaining
	if eta, ok := t.estimate(s); ok {
		remaining = eta
	}

	t.percent = pct
	t.remaining = remaining
	t.last = s
	t.hasLast = true
	t.samples++

	events := []Event{{
		Kind:      EventProgress,
		Duration:  t.duration,
		Percent:   pct,
		Remaining: remaining,
		Sample:    s,
	}}
	if pct == 100 {
		t.complete = true
		events = append(events, Event{Kind: EventComplete, Duration: t.duration, Percent: pct, Sample: s})
	}
	return events, true
}

// estimate computes the ETA against the previous sample. A stalled or
// regressed sample yields no estimate.
func (t *Tracker) estimate(s Sample) (string, bool) {
	if !t.hasLast || !t.hasBitrate {
		return "", false
	}
	dt := s.Time.Milliseconds() - t.last.Time.Milliseconds()
	dk := s.KiB - t.last.KiB
	if dt <= 0 || dk <= 0 {
		return "", false
	}

	rate := float64(dk) / (float64(dt) / 1000)
	// constant bitrate assumption over the whole stream, in KiB
	finalKiB := float64(t.bitrate) * t.duration.Seconds() / 8 / 1024
	seconds := math.Max(0, math.Round((finalKiB-float64(s.KiB))/rate))
	return parse.FormatClock(int64(seconds)), true
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() Snapshot {
	t.lock.Lock()
	defer t.lock.Unlock()

	return Snapshot{
		Phase:         t.phase(),
		Duration:      t.duration,
		DurationKnown: t.hasDuration,
		BitsPerSecond: t.bitrate,
		BitrateKnown:  t.hasBitrate,
		Percent:       t.percent,
		Remaining:     t.remaining,
		Last:          t.last,
		Samples:       t.samples,
	}
}

// Complete reports whether the tracker reached 100%
func (t *Tracker) Complete() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.complete
}

func (t *Tracker) phase() Phase {
	switch {
	case t.complete:
		return PhaseComplete
	case !t.hasDuration:
		return PhaseAwaitingDuration
	case !t.hasLast:
		return PhaseAwaitingBitrate
	default:
		return PhaseStreaming
	}
}
