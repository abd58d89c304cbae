// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package process

import (
	"container/ring"
	"sync"
	"time"
)

// Parser parses process output (e.g. FFmpeg stderr). A non-zero result
// marks the line as progress and keeps the stale timer from firing.
type Parser interface {
	Parse(line string) uint64
}

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Data      string
}

// logRing keeps the last n lines of output
type logRing struct {
	r    *ring.Ring
	n    int
	lock sync.RWMutex
}

func newLogRing(n int) *logRing {
	if n <= 0 {
		n = 100
	}
	return &logRing{r: ring.New(n), n: n}
}

func (l *logRing) add(line string) {
	l.lock.Lock()
	l.r.Value = Line{Timestamp: time.Now(), Data: line}
	l.r = l.r.Next()
	l.lock.Unlock()
}

func (l *logRing) reset() {
	l.lock.Lock()
	l.r = ring.New(l.n)
	l.lock.Unlock()
}

func (l *logRing) lines() []Line {
	var out []Line
	l.lock.RLock()
	l.r.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	l.lock.RUnlock()
	return out
}

type nullParser struct{}

func (p *nullParser) Parse(line string) uint64 { return 1 }
