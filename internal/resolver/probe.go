// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/grafov/m3u8"
)

var ErrNotPlaylist = errors.New("not an HLS playlist")

// PlaylistInfo summarizes an HLS playlist
type PlaylistInfo struct {
	Master       bool    `json:"master"`
	Variants     int     `json:"variants"`
	Segments     int     `json:"segments"`
	MaxBandwidth uint32  `json:"max_bandwidth"`
	Seconds      float64 `json:"seconds"`
}

// Prober fetches playlists before handing them to ffmpeg
type Prober struct {
	userAgent string
	client    *http.Client
}

// NewProber creates a prober, a nil client uses http.DefaultClient
func NewProber(userAgent string, client *http.Client) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return &Prober{userAgent: userAgent, client: client}
}

// Probe downloads and decodes the playlist at address
func (p *Prober) Probe(ctx context.Context, address, referer string) (PlaylistInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return PlaylistInfo{}, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	if ref := strings.TrimSuffix(referer, "/"); ref != "" {
		req.Header.Set("Referer", ref+"/")
		req.Header.Set("Origin", ref)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return PlaylistInfo{}, fmt.Errorf("probing %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PlaylistInfo{}, fmt.Errorf("probing %s: %s", address, resp.Status)
	}

	playlist, kind, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return PlaylistInfo{}, fmt.Errorf("%w: %v", ErrNotPlaylist, err)
	}

	var info PlaylistInfo
	switch kind {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		info.Master = true
		info.Variants = len(master.Variants)
		for _, v := range master.Variants {
			if v != nil && v.Bandwidth > info.MaxBandwidth {
				info.MaxBandwidth = v.Bandwidth
			}
		}
	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		for _, seg := range media.Segments {
			if seg == nil {
				break
			}
			info.Segments++
			info.Seconds += seg.Duration
		}
	default:
		return PlaylistInfo{}, ErrNotPlaylist
	}

	return info, nil
}
