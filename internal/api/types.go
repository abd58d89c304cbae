// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package api

// ShowRequest queues the download of a show
type ShowRequest struct {
	Name string `json:"name" binding:"required"`
}

// ShowResponse is returned once a show is queued
type ShowResponse struct {
	Name      string `json:"name"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Task represents an episode download in API responses
type Task struct {
	ID        string        `json:"id"`
	Reference string        `json:"reference"`
	IMDbID    string        `json:"imdb_id"`
	Season    int           `json:"season"`
	Episode   int           `json:"episode"`
	Code      string        `json:"code"`
	Output    string        `json:"output"`
	Stream    string        `json:"stream,omitempty"`
	State     string        `json:"state"`
	Error     string        `json:"error,omitempty"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
	Progress  *Progress     `json:"progress,omitempty"`
	Process   *ProcessState `json:"process,omitempty"`
}

// Progress from the tracker
type Progress struct {
	Phase         string  `json:"phase"`
	Duration      string  `json:"duration"`
	DurationKnown bool    `json:"duration_known"`
	BitsPerSecond int64   `json:"bits_per_second"`
	BitrateKnown  bool    `json:"bitrate_known"`
	Percent       float64 `json:"percent"`
	Remaining     string  `json:"remaining"`
	Time          string  `json:"time"`
	SizeKiB       int64   `json:"size_kib"`
	Size          string  `json:"size"`
	Line          string  `json:"line"`
}

// ProcessState of FFmpeg
type ProcessState struct {
	Order   string  `json:"order"`
	State   string  `json:"exec"`
	Pid     int     `json:"pid"`
	Runtime int64   `json:"runtime_seconds"`
	Memory  uint64  `json:"memory_bytes"`
	CPU     float64 `json:"cpu_usage"`
	LastLog string  `json:"last_logline"`
}

// TaskReport holds the log tail of FFmpeg
type TaskReport struct {
	CreatedAt int64       `json:"created_at"`
	Log       [][2]string `json:"log"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
