// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package progress

import (
	"fmt"
	"io"
	"math"
	"strings"

	"golang.org/x/term"
)

const (
	barFilled = "█"
	barEmpty  = "-"
)

// Renderer draws tracker events as a single status line.
//
//	Total Duration: 00:42:17.36
//	Progress: [█████████████-------------------------------------]  26% (remaining: 00:03:12)
//	Download complete!
type Renderer struct {
	w       io.Writer
	inPlace bool
}

// NewRenderer creates a renderer. With inPlace the status line is redrawn
// with a carriage return, otherwise every render is its own line.
func NewRenderer(w io.Writer, inPlace bool) *Renderer {
	return &Renderer{w: w, inPlace: inPlace}
}

// NewTerminalRenderer redraws in place only when w is a terminal
func NewTerminalRenderer(w io.Writer) *Renderer {
	return NewRenderer(w, IsTerminal(w))
}

// IsTerminal reports whether w is a file attached to a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Observe implements Observer. Write errors are ignored.
func (r *Renderer) Observe(e Event) {
	switch e.Kind {
	case EventDuration:
		fmt.Fprintf(r.w, "\nTotal Duration: %s\n", e.Duration)
	case EventProgress:
		line := StatusLine(e.Percent, e.Remaining)
		if r.inPlace {
			fmt.Fprintf(r.w, "\r%s", line)
		} else {
			fmt.Fprintf(r.w, "%s\n", line)
		}
	case EventComplete:
		if r.inPlace {
			fmt.Fprint(r.w, "\n")
		}
		fmt.Fprint(r.w, "Download complete!\n\n")
	}
}

// StatusLine renders the progress line without any cursor control
func StatusLine(percent float64, remaining string) string {
	return fmt.Sprintf("Progress: [%s] %3d%% (remaining: %s)", Bar(percent), int(math.Round(percent)), remaining)
}

// Bar renders a BarWidth-cell bar for percent in [0,100]
func Bar(percent float64) string {
	filled := int(math.Round(BarWidth * percent / 100))
	if filled < 0 {
		filled = 0
	}
	if filled > BarWidth {
		filled = BarWidth
	}
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, BarWidth-filled)
}
