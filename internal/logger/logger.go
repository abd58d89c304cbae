// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Named(name string) Logger
}

type hcLogger struct {
	l hclog.Logger
}

// New creates a logger writing to stderr. Unknown levels fall back to info.
func New(name, level string) Logger {
	return NewWithWriter(os.Stderr, name, level)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, name, level string) Logger {
	return &hcLogger{l: hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(level),
		Output: w,
		Color:  hclog.AutoColor,
	})}
}

// Nop discards everything
func Nop() Logger {
	return &hcLogger{l: hclog.NewNullLogger()}
}

func (h *hcLogger) Info(format string, args ...interface{}) {
	if h.l.IsInfo() {
		h.l.Info(fmt.Sprintf(format, args...))
	}
}

func (h *hcLogger) Warn(format string, args ...interface{}) {
	if h.l.IsWarn() {
		h.l.Warn(fmt.Sprintf(format, args...))
	}
}

func (h *hcLogger) Error(format string, args ...interface{}) {
	if h.l.IsError() {
		h.l.Error(fmt.Sprintf(format, args...))
	}
}

func (h *hcLogger) Debug(format string, args ...interface{}) {
	if h.l.IsDebug() {
		h.l.Debug(fmt.Sprintf(format, args...))
	}
}

func (h *hcLogger) Named(name string) Logger {
	return &hcLogger{l: h.l.Named(name)}
}
