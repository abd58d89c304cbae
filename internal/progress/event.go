// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package progress

import "github.com/ZSC714725/episodegrab/internal/ffmpeg/parse"

// EventKind identifies what a tracker event announces
type EventKind int

const (
	EventDuration EventKind = iota + 1
	EventProgress
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventDuration:
		return "duration"
	case EventProgress:
		return "progress"
	case EventComplete:
		return "complete"
	}
	return "unknown"
}

// Sample is a progress sample: media position and KiB written
type Sample struct {
	Time parse.Timestamp
	KiB  int64
}

// Event is emitted by a Tracker. Fields not relevant to Kind are zero.
type Event struct {
	Kind      EventKind
	Duration  parse.Timestamp
	Percent   float64
	Remaining string
	Sample    Sample
}

// Observer receives tracker events synchronously, in line order.
type Observer interface {
	Observe(e Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(e Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type observers []Observer

// Multi fans events out to every non-nil observer in order
func Multi(list ...Observer) Observer {
	var o observers
	for _, x := range list {
		if x != nil {
			o = append(o, x)
		}
	}
	return o
}

func (o observers) Observe(e Event) {
	for _, x := range o {
		x.Observe(e)
	}
}
