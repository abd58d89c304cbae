// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ZSC714725/episodegrab/internal/downloader"
	"github.com/ZSC714725/episodegrab/internal/ffmpeg"
	"github.com/ZSC714725/episodegrab/internal/logger"
	"github.com/ZSC714725/episodegrab/internal/progress"
	"github.com/ZSC714725/episodegrab/internal/task"

	"github.com/dustin/go-humanize"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// ShowRunner downloads a whole show
type ShowRunner interface {
	Run(ctx context.Context, name string) (downloader.Result, error)
}

// Handler holds dependencies
type Handler struct {
	ctx    context.Context
	store  task.Store
	ffmpeg ffmpeg.FFmpeg
	runner ShowRunner
	logger logger.Logger
}

// NewHandler creates API handler. Shows queued through the API run until
// ctx is cancelled.
func NewHandler(ctx context.Context, store task.Store, ff ffmpeg.FFmpeg, runner ShowRunner, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{ctx: ctx, store: store, ffmpeg: ff, runner: runner, logger: log}
}

// NewRouter registers the routes under /api/v3. A nil metrics handler
// leaves /metrics out.
func NewRouter(h *Handler, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), cors.Default(), h.accessLog)

	v3 := r.Group("/api/v3")
	{
		v3.GET("/skills", h.Skills)
		v3.POST("/skills/reload", h.ReloadSkills)

		v3.POST("/shows", h.AddShow)

		v3.GET("/tasks", h.ListTasks)
		v3.GET("/tasks/:id", h.GetTask)
		v3.GET("/tasks/:id/progress", h.GetProgress)
		v3.GET("/tasks/:id/report", h.GetReport)
		v3.DELETE("/tasks/:id", h.DeleteTask)
	}

	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	return r
}

func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.logger.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// AddShow POST /api/v3/shows
func (h *Handler) AddShow(c *gin.Context) {
	var req ShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errResp(c, http.StatusBadRequest, "Show name required", "")
		return
	}

	// 后台下载，按顺序排队
	go func() {
		result, err := h.runner.Run(h.ctx, name)
		if err != nil {
			h.logger.Error("show %q: %v", name, err)
			return
		}
		h.logger.Info("show %q: %d finished, %d failed, %d skipped", name, result.Finished, result.Failed, result.Skipped)
	}()

	c.JSON(http.StatusAccepted, ShowResponse{Name: name, Reference: name, Status: "queued"})
}

// ListTasks GET /api/v3/tasks
func (h *Handler) ListTasks(c *gin.Context) {
	reference := c.DefaultQuery("reference", "")
	idStr := c.DefaultQuery("id", "")

	var ids []string
	if idStr != "" {
		ids = strings.FieldsFunc(idStr, func(r rune) bool { return r == ',' })
		for i := range ids {
			ids[i] = strings.TrimSpace(ids[i])
		}
	}

	tasks := h.store.List(ids, reference)
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToAPI(t))
	}

	c.JSON(http.StatusOK, out)
}

// GetTask GET /api/v3/tasks/:id
func (h *Handler) GetTask(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown task ID", err.Error())
		return
	}

	c.JSON(http.StatusOK, taskToAPI(t))
}

// GetProgress GET /api/v3/tasks/:id/progress
func (h *Handler) GetProgress(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown task ID", err.Error())
		return
	}

	snap, ok := t.Progress()
	if !ok {
		snap = progress.Snapshot{Phase: progress.PhaseAwaitingDuration, Remaining: progress.DefaultRemaining}
	}
	c.JSON(http.StatusOK, progressToAPI(snap))
}

// GetReport GET /api/v3/tasks/:id/report
func (h *Handler) GetReport(c *gin.Context) {
	t, err := h.store.Get(c.Param("id"))
	if err != nil {
		errResp(c, http.StatusNotFound, "Unknown task ID", err.Error())
		return
	}

	report := TaskReport{CreatedAt: t.CreatedAt}

	lines := t.Log()
	report.Log = make([][2]string, len(lines))
	for i, line := range lines {
		report.Log[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}

	c.JSON(http.StatusOK, report)
}

// DeleteTask DELETE /api/v3/tasks/:id
func (h *Handler) DeleteTask(c *gin.Context) {
	if err := h.store.Delete(c.Param("id")); err != nil {
		if errors.Is(err, task.ErrNotFound) {
			errResp(c, http.StatusNotFound, "Unknown task ID", err.Error())
			return
		}
		errResp(c, http.StatusInternalServerError, "Delete failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// Skills GET /api/v3/skills
func (h *Handler) Skills(c *gin.Context) {
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills()))
}

// ReloadSkills POST /api/v3/skills/reload
func (h *Handler) ReloadSkills(c *gin.Context) {
	if err := h.ffmpeg.ReloadSkills(); err != nil {
		errResp(c, http.StatusInternalServerError, "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, skillsToAPI(h.ffmpeg.Skills()))
}

func taskToAPI(t *task.Task) Task {
	out := Task{
		ID:        t.ID,
		Reference: t.Reference,
		IMDbID:    t.Episode.IMDbID,
		Season:    t.Episode.Season,
		Episode:   t.Episode.Episode,
		Code:      t.Episode.Code(),
		Output:    t.Output,
		Stream:    t.Stream(),
		State:     string(t.State()),
		Error:     t.Reason(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt(),
	}

	if snap, ok := t.Progress(); ok {
		p := progressToAPI(snap)
		out.Progress = &p
	}

	if status, ok := t.Status(); ok {
		out.Process = &ProcessState{
			Order:   status.Order,
			State:   status.State,
			Pid:     status.Pid,
			Runtime: int64(status.Duration.Seconds()),
			Memory:  status.Memory,
			CPU:     status.CPU,
		}
		if lines := t.Log(); len(lines) > 0 {
			out.Process.LastLog = lines[len(lines)-1].Data
		}
	}

	return out
}

func progressToAPI(s progress.Snapshot) Progress {
	p := Progress{
		Phase:         string(s.Phase),
		DurationKnown: s.DurationKnown,
		BitsPerSecond: s.BitsPerSecond,
		BitrateKnown:  s.BitrateKnown,
		Percent:       s.Percent,
		Remaining:     s.Remaining,
		SizeKiB:       s.Last.KiB,
		Size:          humanize.IBytes(uint64(max(s.Last.KiB, 0)) * 1024),
		Line:          progress.StatusLine(s.Percent, s.Remaining),
	}
	if s.DurationKnown {
		p.Duration = s.Duration.String()
	}
	if s.Samples > 0 {
		p.Time = s.Last.Time.String()
	}
	return p
}
