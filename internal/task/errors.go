// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package task

import "errors"

var (
	ErrNotFound       = errors.New("task not found")
	ErrTaskExists     = errors.New("task already exists")
	ErrInvalidEpisode = errors.New("invalid episode: need a show, a season and an episode number")
	ErrFinalState     = errors.New("task already ended")
)
