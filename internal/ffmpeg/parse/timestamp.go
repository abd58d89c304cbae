// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package parse

import (
	"fmt"
	"regexp"
	"strconv"
)

var reTimestamp = regexp.MustCompile(`^([0-9]{2}):([0-9]{2}):([0-9]{2})\.([0-9]{2})$`)

// Timestamp is a media time as printed by FFmpeg (HH:MM:SS.cc).
type Timestamp struct {
	hours        int
	minutes      int
	seconds      int
	centiseconds int
}

// NewTimestamp returns a timestamp from its fields. Minutes and seconds must be below 60.
func NewTimestamp(hours, minutes, seconds, centiseconds int) (Timestamp, error) {
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 ||
		centiseconds < 0 || centiseconds > 99 {
		return Timestamp{}, fmt.Errorf("%w: %02d:%02d:%02d.%02d", ErrMalformedTimestamp, hours, minutes, seconds, centiseconds)
	}
	return Timestamp{hours: hours, minutes: minutes, seconds: seconds, centiseconds: centiseconds}, nil
}

// ParseTimestamp parses "HH:MM:SS.cc".
func ParseTimestamp(s string) (Timestamp, error) {
	m := reTimestamp.FindStringSubmatch(s)
	if m == nil {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	cc, _ := strconv.Atoi(m[4])
	return NewTimestamp(h, mm, sec, cc)
}

// Milliseconds is the only form timestamps are compared or computed in.
func (t Timestamp) Milliseconds() int64 {
	return int64(t.hours*3600+t.minutes*60+t.seconds)*1000 + int64(t.centiseconds)*10
}

// Seconds returns the timestamp in (fractional) seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t.Milliseconds()) / 1000
}

// IsZero reports whether t is 00:00:00.00.
func (t Timestamp) IsZero() bool {
	return t.Milliseconds() == 0
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%02d", t.hours, t.minutes, t.seconds, t.centiseconds)
}

// FormatClock formats whole seconds as HH:MM:SS. Negative values render as zero.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
