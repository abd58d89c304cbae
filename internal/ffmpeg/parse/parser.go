// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具
//
// Package parse classifies single lines of FFmpeg stderr into progress facts.

package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrMalformedDuration  = errors.New("malformed duration")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

const (
	durationMarker = "Duration:"
	bitrateMarker  = "variant_bitrate :"
	timeMarker     = "time="
	sizeMarker     = "size="
)

// Fact is one piece of information extracted from a line.
type Fact interface {
	fact()
}

// DurationFact announces the total duration of the input.
type DurationFact struct {
	Total Timestamp
}

// BitrateFact announces the bitrate of the selected HLS variant in bits/s.
type BitrateFact struct {
	BitsPerSecond int64
}

// ProgressFact is a progress sample: current position and KiB written so far.
type ProgressFact struct {
	Time Timestamp
	KiB  int64
}

func (DurationFact) fact() {}
func (BitrateFact) fact()  {}
func (ProgressFact) fact() {}

var re struct {
	duration *regexp.Regexp
	bitrate  *regexp.Regexp
	time     *regexp.Regexp
	size     *regexp.Regexp
}

func init() {
	re.duration = regexp.MustCompile(`Duration:\s*([0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]{2})\b`)
	re.bitrate = regexp.MustCompile(`variant_bitrate : ([0-9]+)`)
	re.time = regexp.MustCompile(`time=([0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]{2})\b`)
	re.size = regexp.MustCompile(`size=\s*([0-9]+)KiB`)
}

// Classify returns every fact carried by line, in the order duration,
// bitrate, progress. The three checks are independent of each other.
//
// A line carrying a marker with an unparsable value yields an error for that
// fact; facts found on the same line are still returned.
func Classify(line string) ([]Fact, error) {
	var (
		facts []Fact
		errs  []error
	)

	if f, ok, err := classifyDuration(line); err != nil {
		errs = append(errs, err)
	} else if ok {
		facts = append(facts, f)
	}
	if f, ok := classifyBitrate(line); ok {
		facts = append(facts, f)
	}
	if f, ok, err := classifyProgress(line); err != nil {
		errs = append(errs, err)
	} else if ok {
		facts = append(facts, f)
	}

	return facts, errors.Join(errs...)
}

func classifyDuration(line string) (DurationFact, bool, error) {
	if !strings.Contains(line, durationMarker) {
		return DurationFact{}, false, nil
	}
	m := re.duration.FindStringSubmatch(line)
	if m == nil {
		return DurationFact{}, false, fmt.Errorf("%w: %q", ErrMalformedDuration, strings.TrimSpace(line))
	}
	t, err := ParseTimestamp(m[1])
	if err != nil {
		return DurationFact{}, false, fmt.Errorf("%w: %w", ErrMalformedDuration, err)
	}
	return DurationFact{Total: t}, true, nil
}

func classifyBitrate(line string) (BitrateFact, bool) {
	if !strings.Contains(line, bitrateMarker) {
		return BitrateFact{}, false
	}
	m := re.bitrate.FindStringSubmatch(line)
	if m == nil {
		return BitrateFact{}, false
	}
	x, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return BitrateFact{}, false
	}
	return BitrateFact{BitsPerSecond: x}, true
}

func classifyProgress(line string) (ProgressFact, bool, error) {
	if !strings.Contains(line, timeMarker) || !strings.Contains(line, sizeMarker) {
		return ProgressFact{}, false, nil
	}
	ms := re.size.FindStringSubmatch(line)
	if ms == nil {
		return ProgressFact{}, false, nil
	}
	size, err := strconv.ParseInt(ms[1], 10, 64)
	if err != nil {
		return ProgressFact{}, false, nil
	}
	mt := re.time.FindStringSubmatch(line)
	if mt == nil {
		// time=N/A 等
		return ProgressFact{}, false, fmt.Errorf("%w: no time in progress line", ErrMalformedTimestamp)
	}
	t, err := ParseTimestamp(mt[1])
	if err != nil {
		return ProgressFact{}, false, err
	}
	return ProgressFact{Time: t, KiB: size}, true, nil
}
