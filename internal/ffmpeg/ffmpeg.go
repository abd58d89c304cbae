// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package ffmpeg

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/episodegrab/internal/ffmpeg/skills"
	"github.com/ZSC714725/episodegrab/internal/logger"
	"github.com/ZSC714725/episodegrab/internal/process"
)

// FFmpeg manages FFmpeg binary and skills
type FFmpeg interface {
	New(config ProcessConfig) (process.Process, error)
	Command(in Input) []string
	ValidateInput(address string) bool
	ValidateOutput(address string) bool
	Skills() skills.Skills
	ReloadSkills() error
}

// ProcessConfig for creating a process
type ProcessConfig struct {
	StaleTimeout  time.Duration
	Command       []string
	Parser        process.Parser
	Logger        logger.Logger
	OnExit        func(err error)
	OnStart       func()
	OnStateChange func(from, to string)
}

// Input describes one stream copy
type Input struct {
	URL     string
	Referer string
	Output  string
}

// Config for FFmpeg
type Config struct {
	Binary          string
	MaxLogLines     int
	Headers         []string
	ValidatorInput  Validator
	ValidatorOutput Validator
	Logger          logger.Logger
}

type ffmpeg struct {
	binary       string
	headers      []string
	validatorIn  Validator
	validatorOut Validator
	skills       skills.Skills
	logLines     int
	skillsLock   sync.RWMutex
}

// New creates FFmpeg
func New(config Config) (FFmpeg, error) {
	binary, err := exec.LookPath(config.Binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}

	f := &ffmpeg{
		binary:   binary,
		headers:  config.Headers,
		logLines: config.MaxLogLines,
	}

	if f.logLines <= 0 {
		f.logLines = 100
	}

	if config.ValidatorInput != nil {
		f.validatorIn = config.ValidatorInput
	} else {
		f.validatorIn, _ = NewValidator(nil, nil)
	}
	if config.ValidatorOutput != nil {
		f.validatorOut = config.ValidatorOutput
	} else {
		f.validatorOut, _ = NewValidator(nil, nil)
	}

	s, err := skills.New(f.binary)
	if err != nil {
		return nil, fmt.Errorf("invalid ffmpeg: %w", err)
	}
	f.skills = s

	if config.Logger != nil {
		config.Logger.Debug("using %s (version %s)", f.binary, s.FFmpeg.Version)
		for _, w := range checkSkills(s) {
			config.Logger.Warn("%s", w)
		}
	}

	return f, nil
}

// checkSkills lists what is missing for copying HLS over HTTPS to mp4
func checkSkills(s skills.Skills) []string {
	var warnings []string
	if !s.HasDemuxer("hls") {
		warnings = append(warnings, "ffmpeg has no hls demuxer, playlist streams will fail")
	}
	if !s.HasInputProtocol("https") {
		warnings = append(warnings, "ffmpeg has no https input protocol, secure streams will fail")
	}
	if !s.HasMuxer("mp4") {
		warnings = append(warnings, "ffmpeg has no mp4 muxer")
	}
	return warnings
}

func (f *ffmpeg) New(config ProcessConfig) (process.Process, error) {
	return process.New(process.Config{
		Binary:        f.binary,
		Args:          config.Command,
		StaleTimeout:  config.StaleTimeout,
		LogLines:      f.logLines,
		Parser:        config.Parser,
		Monitor:       process.NewSysMonitor(),
		Logger:        config.Logger,
		OnStart:       config.OnStart,
		OnExit:        config.OnExit,
		OnStateChange: config.OnStateChange,
	})
}

func (f *ffmpeg) Command(in Input) []string {
	return BuildCommand(f.headers, in)
}

// BuildCommand returns the arguments copying in.URL to in.Output without
// re-encoding. The referer of the source is sent as referer and origin.
func BuildCommand(headers []string, in Input) []string {
	h := append([]string(nil), headers...)
	if ref := strings.TrimSuffix(in.Referer, "/"); ref != "" {
		h = append(h, "referer: "+ref+"/", "origin: "+ref)
	}

	args := []string{"-y"}
	if len(h) > 0 {
		args = append(args, "-headers", strings.Join(h, "\r\n")+"\r\n")
	}
	return append(args, "-i", in.URL, "-c", "copy", in.Output)
}

func (f *ffmpeg) ValidateInput(address string) bool {
	return f.validatorIn.IsValid(address)
}

func (f *ffmpeg) ValidateOutput(address string) bool {
	return f.validatorOut.IsValid(address)
}

func (f *ffmpeg) Skills() skills.Skills {
	f.skillsLock.RLock()
	defer f.skillsLock.RUnlock()
	return f.skills
}

func (f *ffmpeg) ReloadSkills() error {
	s, err := skills.New(f.binary)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	f.skillsLock.Lock()
	f.skills = s
	f.skillsLock.Unlock()
	return nil
}
