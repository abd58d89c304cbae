// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具
//
// Package library lays out downloaded episodes on disk:
//
//	<dir>/<show>/Season <n>/<show> - S<nn>E<nn>.<ext>

package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Library is a directory of shows
type Library struct {
	dir string
	ext string
}

// New creates a library rooted at dir, ext is the file extension without dot
func New(dir, ext string) *Library {
	return &Library{dir: dir, ext: strings.TrimPrefix(ext, ".")}
}

// Dir returns the root directory
func (l *Library) Dir() string {
	return l.dir
}

// ShowDir returns the directory of a show
func (l *Library) ShowDir(show string) string {
	return filepath.Join(l.dir, SanitizeName(show))
}

// SeasonDir returns the directory of a season
func (l *Library) SeasonDir(show string, season int) string {
	return filepath.Join(l.ShowDir(show), fmt.Sprintf("Season %d", season))
}

// EpisodePath returns the file path of an episode
func (l *Library) EpisodePath(show string, season, episode int) string {
	name := fmt.Sprintf("%s - %s.%s", SanitizeName(show), EpisodeCode(season, episode), l.ext)
	return filepath.Join(l.SeasonDir(show, season), name)
}

// EnsureSeasonDir creates the season directory if needed
func (l *Library) EnsureSeasonDir(show string, season int) (string, error) {
	dir := l.SeasonDir(show, season)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// Exists reports whether a non-empty file exists at path
func Exists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Size() > 0
}

// EpisodeCode formats S01E02
func EpisodeCode(season, episode int) string {
	return fmt.Sprintf("S%02dE%02d", season, episode)
}

var unsafeChars = strings.NewReplacer(
	"/", "-", "\\", "-", ":", " -", "*", "", "?", "", "\"", "'", "<", "", ">", "", "|", "-",
)

// SanitizeName makes a show name usable as a file name
func SanitizeName(name string) string {
	name = strings.TrimSpace(unsafeChars.Replace(name))
	name = strings.Trim(name, ".")
	if name == "" {
		return "Unknown"
	}
	return name
}
