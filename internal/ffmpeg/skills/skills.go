// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Format represents a supported format
type Format struct {
	Id   string
	Name string
}

// Protocol represents a supported protocol
type Protocol struct {
	Id   string
	Name string
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

type ffmpegInfo struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Skills are the detected capabilities of FFmpeg that matter for
// copying HLS streams to files
type Skills struct {
	FFmpeg  ffmpegInfo
	Formats struct {
		Demuxers []Format
		Muxers   []Format
	}
	Protocols struct {
		Input  []Protocol
		Output []Protocol
	}
}

// HasDemuxer reports whether FFmpeg can read the given format (e.g. "hls")
func (s Skills) HasDemuxer(id string) bool {
	for _, f := range s.Formats.Demuxers {
		if f.Id == id {
			return true
		}
	}
	return false
}

// HasMuxer reports whether FFmpeg can write the given format (e.g. "mp4")
func (s Skills) HasMuxer(id string) bool {
	for _, f := range s.Formats.Muxers {
		if f.Id == id {
			return true
		}
	}
	return false
}

// HasInputProtocol reports whether FFmpeg can read via the given protocol (e.g. "https")
func (s Skills) HasInputProtocol(id string) bool {
	for _, p := range s.Protocols.Input {
		if p.Id == id {
			return true
		}
	}
	return false
}

// New returns all skills that FFmpeg provides
func New(binary string) (Skills, error) {
	c := Skills{}

	ff, err := getVersion(binary)
	if ff.Version == "" || err != nil {
		if err != nil {
			return Skills{}, fmt.Errorf("can't parse ffmpeg version: %w", err)
		}
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}
	c.FFmpeg = ff

	formats := getFormats(binary)
	c.Formats = formats

	protocols := getProtocols(binary)
	c.Protocols = protocols

	return c, nil
}

func run(binary string, arg string) []byte {
	cmd := exec.Command(binary, "-hide_banner", arg)
	stdout, _ := cmd.Output()
	return stdout
}

func getVersion(binary string) (ffmpegInfo, error) {
	cmd := exec.Command(binary, "-version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return ffmpegInfo{}, err
	}
	return parseVersion(out), nil
}

func parseVersion(data []byte) ffmpegInfo {
	f := ffmpegInfo{}
	reVersion := regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler := regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration := regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary := regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

func getFormats(binary string) struct {
	Demuxers []Format
	Muxers   []Format
} {
	return parseFormats(run(binary, "-formats"))
}

func parseFormats(data []byte) struct {
	Demuxers []Format
	Muxers   []Format
} {
	f := struct {
		Demuxers []Format
		Muxers   []Format
	}{}
	re := regexp.MustCompile(`^\s([D ])([E ])d? ([0-9A-Za-z_,]+)\s+(.*?)$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// "mov,mp4,m4a,3gp,3g2,mj2" 这类别名逐个登记
		for _, id := range strings.Split(m[3], ",") {
			format := Format{Id: id, Name: m[4]}
			if m[1] == "D" {
				f.Demuxers = append(f.Demuxers, format)
			}
			if m[2] == "E" {
				f.Muxers = append(f.Muxers, format)
			}
		}
	}
	return f
}

func getProtocols(binary string) struct {
	Input  []Protocol
	Output []Protocol
} {
	return parseProtocols(run(binary, "-protocols"))
}

func parseProtocols(data []byte) struct {
	Input  []Protocol
	Output []Protocol
} {
	p := struct {
		Input  []Protocol
		Output []Protocol
	}{}
	mode := ""
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "Input:":
			mode = "input"
			continue
		case "Output:":
			mode = "output"
			continue
		}
		if mode == "" {
			continue
		}
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		proto := Protocol{Id: id, Name: id}
		if mode == "input" {
			p.Input = append(p.Input, proto)
		} else {
			p.Output = append(p.Output, proto)
		}
	}
	return p
}
