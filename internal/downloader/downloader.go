// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

// Package downloader copies every episode of a show into the library, one
// FFmpeg process at a time.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ZSC714725/episodegrab/internal/discovery"
	"github.com/ZSC714725/episodegrab/internal/ffmpeg"
	"github.com/ZSC714725/episodegrab/internal/library"
	"github.com/ZSC714725/episodegrab/internal/logger"
	"github.com/ZSC714725/episodegrab/internal/metrics"
	"github.com/ZSC714725/episodegrab/internal/process"
	"github.com/ZSC714725/episodegrab/internal/progress"
	"github.com/ZSC714725/episodegrab/internal/resolver"
	"github.com/ZSC714725/episodegrab/internal/task"

	"github.com/dustin/go-humanize"
)

var (
	ErrInvalidConfig = errors.New("downloader needs a catalog, a resolver, ffmpeg, a library and a task store")
	ErrInputRejected = errors.New("stream address rejected by input rules")
	ErrAllSources    = errors.New("all sources failed")

	errCancelled = errors.New("task cancelled")
)

// Config for a Downloader
type Config struct {
	Catalog  discovery.Catalog
	Resolver resolver.Resolver
	Prober   *resolver.Prober // nil disables probing
	FFmpeg   ffmpeg.FFmpeg
	Library  *library.Library
	Store    task.Store
	Metrics  *metrics.Metrics

	// Output receives the console messages and the progress bar, nil discards them
	Output  io.Writer
	InPlace bool

	StaleTimeout     time.Duration
	BarBeforeBitrate bool
	Logger           logger.Logger
}

// Result of a show run
type Result struct {
	Show      discovery.Show
	Tasks     []string
	Finished  int
	Failed    int
	Skipped   int
	Cancelled int
}

// Downloader runs shows one after the other
type Downloader struct {
	catalog  discovery.Catalog
	resolver resolver.Resolver
	prober   *resolver.Prober
	ffmpeg   ffmpeg.FFmpeg
	library  *library.Library
	store    task.Store
	metrics  *metrics.Metrics
	out      io.Writer
	renderer *progress.Renderer
	logger   logger.Logger

	staleTimeout     time.Duration
	barBeforeBitrate bool

	// 同一时间只跑一个 FFmpeg
	lock sync.Mutex
}

// New creates a downloader
func New(config Config) (*Downloader, error) {
	if config.Catalog == nil || config.Resolver == nil || config.FFmpeg == nil || config.Library == nil || config.Store == nil {
		return nil, ErrInvalidConfig
	}

	d := &Downloader{
		catalog:          config.Catalog,
		resolver:         config.Resolver,
		prober:           config.Prober,
		ffmpeg:           config.FFmpeg,
		library:          config.Library,
		store:            config.Store,
		metrics:          config.Metrics,
		out:              config.Output,
		logger:           config.Logger,
		staleTimeout:     config.StaleTimeout,
		barBeforeBitrate: config.BarBeforeBitrate,
	}

	if d.out == nil {
		d.out = io.Discard
	} else {
		d.renderer = progress.NewRenderer(d.out, config.InPlace)
	}
	if d.logger == nil {
		d.logger = logger.Nop()
	}

	return d, nil
}

// Plan looks the show up and queues a task for every episode
func (d *Downloader) Plan(ctx context.Context, name string) (Result, []*task.Task, error) {
	show, err := d.catalog.Search(ctx, name)
	if err != nil {
		return Result{}, nil, fmt.Errorf("searching %q: %w", name, err)
	}
	d.logger.Info("found %s at %s", name, show.ID)

	seasons, err := d.catalog.Seasons(ctx, show.ID)
	if err != nil {
		return Result{Show: show}, nil, fmt.Errorf("listing seasons of %s: %w", show.ID, err)
	}
	for _, s := range seasons {
		d.logger.Info("found season %d with %d episodes for %s", s.Number, s.Episodes, show.ID)
	}

	result := Result{Show: show}
	var tasks []*task.Task
	for _, ep := range discovery.Episodes(show, name, seasons) {
		t, err := d.store.Add(ep, d.library.EpisodePath(name, ep.Season, ep.Episode))
		if err != nil {
			d.logger.Warn("%s %s: %v", name, ep.Code(), err)
			continue
		}
		tasks = append(tasks, t)
		result.Tasks = append(result.Tasks, t.ID)
	}

	return result, tasks, nil
}

// Run downloads every episode of the show. Failed episodes are recorded and
// the batch goes on; cancelling ctx stops the running FFmpeg and cancels the
// remaining episodes.
func (d *Downloader) Run(ctx context.Context, name string) (Result, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	result, tasks, err := d.Plan(ctx, name)
	if err != nil {
		return result, err
	}

	season := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			if d.store.Cancel(t.ID) == nil {
				d.count(&result, task.StateCancelled)
			}
			continue
		}

		if t.Episode.Season != season {
			season = t.Episode.Season
			fmt.Fprintf(d.out, "Processing %s [%s] - S%02d\n", name, result.Show.ID, season)
		}

		state := d.episode(ctx, t)
		d.count(&result, state)
	}

	d.logger.Info("%s done: %d finished, %d failed, %d skipped, %d cancelled",
		name, result.Finished, result.Failed, result.Skipped, result.Cancelled)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (d *Downloader) count(r *Result, state task.State) {
	switch state {
	case task.StateFinished:
		r.Finished++
	case task.StateFailed:
		r.Failed++
	case task.StateSkipped:
		r.Skipped++
	case task.StateCancelled:
		r.Cancelled++
	}
	if d.metrics != nil && state.IsFinal() {
		d.metrics.Episode(string(state))
	}
}

// episode runs one task to a final state and returns it
func (d *Downloader) episode(ctx context.Context, t *task.Task) task.State {
	ep := t.Episode
	log := d.logger.Named(ep.Code())

	fmt.Fprintf(d.out, "- Scraping %s [%s] - %s...\n", ep.Show, ep.IMDbID, ep.Code())

	if library.Exists(t.Output) {
		fmt.Fprintf(d.out, "-- File already downloaded, skipping...\n\n")
		return d.settle(t, task.StateSkipped, nil)
	}

	// cancelled while queued
	if err := d.store.Update(t.ID, task.StateRunning, nil); err != nil {
		return t.State()
	}

	if _, err := d.library.EnsureSeasonDir(ep.Show, ep.Season); err != nil {
		log.Error("%v", err)
		return d.settle(t, task.StateFailed, err)
	}

	sources, err := d.resolver.Resolve(ctx, ep)
	if err != nil {
		log.Error("resolving: %v", err)
		if ctx.Err() != nil {
			return d.settle(t, task.StateCancelled, nil)
		}
		return d.settle(t, task.StateFailed, err)
	}

	var errs []error
	for i, src := range sources {
		if t.State() == task.StateCancelled {
			return task.StateCancelled
		}

		err := d.source(ctx, t, src, log)
		if err == nil {
			d.saved(t, log)
			return d.settle(t, task.StateFinished, nil)
		}

		os.Remove(t.Output)

		if ctx.Err() != nil || errors.Is(err, process.ErrStopped) || t.State() == task.StateCancelled {
			return d.settle(t, task.StateCancelled, nil)
		}

		log.Error("source %d/%d failed: %v", i+1, len(sources), err)
		errs = append(errs, err)
	}

	return d.settle(t, task.StateFailed, fmt.Errorf("%w: %w", ErrAllSources, errors.Join(errs...)))
}

func (d *Downloader) settle(t *task.Task, state task.State, cause error) task.State {
	if err := d.store.Update(t.ID, state, cause); err != nil {
		// cancelled from the outside in the meantime
		return t.State()
	}
	return state
}

// source copies one stream into the task's output
func (d *Downloader) source(ctx context.Context, t *task.Task, src resolver.Source, log logger.Logger) error {
	if !d.ffmpeg.ValidateInput(src.Stream) {
		return fmt.Errorf("%w: %s", ErrInputRejected, src.Stream)
	}
	if !d.ffmpeg.ValidateOutput(t.Output) {
		return fmt.Errorf("output %s rejected by output rules", t.Output)
	}

	if d.prober != nil {
		info, err := d.prober.Probe(ctx, src.Stream, src.Referer)
		if err != nil {
			log.Warn("probe: %v", err)
		} else if info.Master {
			log.Debug("master playlist, %d variants, up to %s/s", info.Variants, humanize.SI(float64(info.MaxBandwidth), "bit"))
		} else {
			log.Debug("media playlist, %d segments, %.0fs", info.Segments, info.Seconds)
		}
	}

	fmt.Fprintf(d.out, "-- Downloading from %s\n", src.Stream)

	observers := []progress.Observer{}
	if d.renderer != nil {
		observers = append(observers, d.renderer)
	}
	if d.metrics != nil {
		observers = append(observers, d.metrics.Observer())
	}

	tracker := progress.New(progress.Config{
		Observer:         progress.Multi(observers...),
		Logger:           log,
		BarBeforeBitrate: d.barBeforeBitrate,
	})

	command := d.ffmpeg.Command(ffmpeg.Input{URL: src.Stream, Referer: src.Referer, Output: t.Output})
	log.Debug("ffmpeg %v", command)

	proc, err := d.ffmpeg.New(ffmpeg.ProcessConfig{
		StaleTimeout: d.staleTimeout,
		Command:      command,
		Parser:       tracker,
		Logger:       log,
		OnStateChange: func(from, to string) {
			log.Debug("ffmpeg %s -> %s", from, to)
		},
	})
	if err != nil {
		return err
	}
	t.Attach(src.Stream, proc, tracker)

	// Cancel only stops a running FFmpeg, check again around Start
	if t.State() == task.StateCancelled {
		return errCancelled
	}

	ended := func(bool) {}
	if d.metrics != nil {
		ended = d.metrics.Started()
	}

	if err := proc.Start(); err != nil {
		ended(false)
		return err
	}
	if t.State() == task.StateCancelled {
		proc.Stop(true)
	}

	err = proc.Wait(ctx)
	ended(err == nil)
	return err
}

func (d *Downloader) saved(t *task.Task, log logger.Logger) {
	size := uint64(0)
	if fi, err := os.Stat(t.Output); err == nil {
		size = uint64(fi.Size())
	}
	log.Info("saved %s (%s)", t.Output, humanize.Bytes(size))
}
