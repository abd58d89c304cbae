// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package api

import (
	"github.com/ZSC714725/episodegrab/internal/ffmpeg/skills"
)

// SkillsItem is a format or protocol
type SkillsItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SkillsLibrary is a linked av library
type SkillsLibrary struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// SkillsResponse for API
type SkillsResponse struct {
	FFmpeg struct {
		Version       string          `json:"version"`
		Compiler      string          `json:"compiler"`
		Configuration string          `json:"configuration"`
		Libraries     []SkillsLibrary `json:"libraries"`
	} `json:"ffmpeg"`

	Formats struct {
		Demuxers []SkillsItem `json:"demuxers"`
		Muxers   []SkillsItem `json:"muxers"`
	} `json:"formats"`

	Protocols struct {
		Input  []SkillsItem `json:"input"`
		Output []SkillsItem `json:"output"`
	} `json:"protocols"`

	// 下载 HLS 所需能力
	Ready struct {
		HLS   bool `json:"hls"`
		HTTPS bool `json:"https"`
		MP4   bool `json:"mp4"`
	} `json:"ready"`
}

func skillsToAPI(s skills.Skills) SkillsResponse {
	resp := SkillsResponse{}

	resp.FFmpeg.Version = s.FFmpeg.Version
	resp.FFmpeg.Compiler = s.FFmpeg.Compiler
	resp.FFmpeg.Configuration = s.FFmpeg.Configuration
	resp.FFmpeg.Libraries = make([]SkillsLibrary, len(s.FFmpeg.Libraries))
	for i, lib := range s.FFmpeg.Libraries {
		resp.FFmpeg.Libraries[i] = SkillsLibrary{Name: lib.Name, Compiled: lib.Compiled, Linked: lib.Linked}
	}

	resp.Formats.Demuxers = formatsToAPI(s.Formats.Demuxers)
	resp.Formats.Muxers = formatsToAPI(s.Formats.Muxers)
	resp.Protocols.Input = protocolsToAPI(s.Protocols.Input)
	resp.Protocols.Output = protocolsToAPI(s.Protocols.Output)

	resp.Ready.HLS = s.HasDemuxer("hls")
	resp.Ready.HTTPS = s.HasInputProtocol("https")
	resp.Ready.MP4 = s.HasMuxer("mp4")

	return resp
}

func formatsToAPI(list []skills.Format) []SkillsItem {
	items := make([]SkillsItem, len(list))
	for i, f := range list {
		items[i] = SkillsItem{ID: f.Id, Name: f.Name}
	}
	return items
}

func protocolsToAPI(list []skills.Protocol) []SkillsItem {
	items := make([]SkillsItem, len(list))
	for i, p := range list {
		items[i] = SkillsItem{ID: p.Id, Name: p.Name}
	}
	return items
}
