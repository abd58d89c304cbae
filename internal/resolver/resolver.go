// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

// Package resolver turns an episode into playable stream addresses.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ZSC714725/episodegrab/internal/discovery"
)

var (
	ErrNoSource      = errors.New("no stream source")
	ErrNotConfigured = errors.New("resolver url not configured")
)

// Source is a stream and the page it must be requested from
type Source struct {
	Stream  string `json:"stream"`
	Referer string `json:"referer"`
}

// Resolver finds the sources of an episode, best first
type Resolver interface {
	Resolve(ctx context.Context, ep discovery.Episode) ([]Source, error)
}

// HTTPResolver asks a JSON endpoint for sources. The template may contain
// {imdb}, {season}, {episode} and {type}.
type HTTPResolver struct {
	template  string
	userAgent string
	client    *http.Client
}

var _ Resolver = (*HTTPResolver)(nil)

// NewHTTPResolver creates a resolver
func NewHTTPResolver(template, userAgent string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPResolver{
		template:  template,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// URL fills the template for ep
func (r *HTTPResolver) URL(ep discovery.Episode) string {
	return strings.NewReplacer(
		"{imdb}", url.PathEscape(ep.IMDbID),
		"{season}", strconv.Itoa(ep.Season),
		"{episode}", strconv.Itoa(ep.Episode),
		"{type}", "tv",
	).Replace(r.template)
}

func (r *HTTPResolver) Resolve(ctx context.Context, ep discovery.Episode) ([]Source, error) {
	if r.template == "" {
		return nil, ErrNotConfigured
	}

	address := r.URL(ep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", ep.Code(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w for %s", ErrNoSource, ep.Code())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolving %s: %s", ep.Code(), resp.Status)
	}

	var found []Source
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&found); err != nil {
		return nil, fmt.Errorf("resolving %s: %w", ep.Code(), err)
	}

	sources := found[:0]
	for _, s := range found {
		if strings.TrimSpace(s.Stream) == "" {
			continue
		}
		sources = append(sources, s)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoSource, ep.Code())
	}

	return sources, nil
}
