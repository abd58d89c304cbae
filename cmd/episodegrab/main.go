// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ZSC714725/episodegrab/internal/api"
	"github.com/ZSC714725/episodegrab/internal/config"
	"github.com/ZSC714725/episodegrab/internal/discovery"
	"github.com/ZSC714725/episodegrab/internal/downloader"
	"github.com/ZSC714725/episodegrab/internal/ffmpeg"
	"github.com/ZSC714725/episodegrab/internal/library"
	"github.com/ZSC714725/episodegrab/internal/logger"
	"github.com/ZSC714725/episodegrab/internal/metrics"
	"github.com/ZSC714725/episodegrab/internal/progress"
	"github.com/ZSC714725/episodegrab/internal/resolver"
	"github.com/ZSC714725/episodegrab/internal/task"
)

type options struct {
	config   string
	show     string
	dir      string
	ffmpeg   string
	serve    bool
	bind     string
	logLevel string
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.config, "config", "", "Path to YAML config file")
	fs.StringVar(&o.show, "show", "", "TV show to download (prompted when empty)")
	fs.StringVar(&o.dir, "dir", "", "Library directory (overrides config)")
	fs.StringVar(&o.ffmpeg, "ffmpeg", "", "FFmpeg binary path (overrides config)")
	fs.BoolVar(&o.serve, "serve", false, "Run the HTTP API instead of a single download")
	fs.StringVar(&o.bind, "bind", "", "Bind address (overrides config)")
	fs.StringVar(&o.logLevel, "log-level", "", "trace, debug, info, warn or error (overrides config)")
	err := fs.Parse(args)
	return o, err
}

func loadConfig(o options) (*config.Config, error) {
	cfg := config.Default()
	if o.config != "" {
		var err error
		cfg, err = config.Load(o.config)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	if o.dir != "" {
		cfg.Download.Dir = o.dir
	}
	if o.ffmpeg != "" {
		cfg.FFmpeg.Path = o.ffmpeg
	}
	if o.bind != "" {
		cfg.Server.Bind = o.bind
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// promptShow reads one show name from in
func promptShow(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Enter the TV show name: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return "", errors.New("no show name given")
	}
	return name, nil
}

func main() {
	o, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New("episodegrab", cfg.Log.Level)

	if err := run(o, cfg, log); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(o options, cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validatorIn, err := ffmpeg.NewInputValidator(cfg.FFmpeg.Access.Input.Allow, cfg.FFmpeg.Access.Input.Block)
	if err != nil {
		return err
	}
	validatorOut, err := ffmpeg.NewValidator(cfg.FFmpeg.Access.Output.Allow, cfg.FFmpeg.Access.Output.Block)
	if err != nil {
		return err
	}

	ff, err := ffmpeg.New(ffmpeg.Config{
		Binary:          cfg.FFmpeg.Path,
		MaxLogLines:     cfg.FFmpeg.LogLines,
		Headers:         cfg.Download.Headers,
		ValidatorInput:  validatorIn,
		ValidatorOutput: validatorOut,
		Logger:          log.Named("ffmpeg"),
	})
	if err != nil {
		return fmt.Errorf("ffmpeg init: %w", err)
	}

	var prober *resolver.Prober
	if cfg.Resolver.Probe {
		prober = resolver.NewProber(cfg.IMDb.UserAgent, &http.Client{Timeout: cfg.Resolver.TimeoutDuration()})
	}
	if cfg.Resolver.URL == "" {
		log.Warn("resolver.url is not set, every episode will fail to resolve")
	}

	store := task.NewStore(log.Named("task"))
	m := metrics.New()

	dlConfig := downloader.Config{
		Catalog:          discovery.New(discovery.Config{BaseURL: cfg.IMDb.BaseURL, UserAgent: cfg.IMDb.UserAgent}),
		Resolver:         resolver.NewHTTPResolver(cfg.Resolver.URL, cfg.IMDb.UserAgent, cfg.Resolver.TimeoutDuration()),
		Prober:           prober,
		FFmpeg:           ff,
		Library:          library.New(cfg.Download.Dir, cfg.Download.Extension),
		Store:            store,
		Metrics:          m,
		StaleTimeout:     cfg.FFmpeg.StaleTimeoutDuration(),
		BarBeforeBitrate: cfg.Progress.BarBeforeBitrate,
		Logger:           log.Named("download"),
	}

	if o.serve {
		dl, err := downloader.New(dlConfig)
		if err != nil {
			return err
		}
		return serve(ctx, cfg.Server.Bind, api.NewHandler(ctx, store, ff, dl, log.Named("api")), m, log)
	}

	show := o.show
	if show == "" {
		show, err = promptShow(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
	}

	dlConfig.Output = os.Stdout
	dlConfig.InPlace = progress.IsTerminal(os.Stdout)
	dl, err := downloader.New(dlConfig)
	if err != nil {
		return err
	}

	result, err := dl.Run(ctx, show)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d episodes failed", result.Failed, len(result.Tasks))
	}
	return nil
}

func serve(ctx context.Context, bind string, h *api.Handler, m *metrics.Metrics, log logger.Logger) error {
	srv := &http.Server{
		Addr:              bind,
		Handler:           api.NewRouter(h, m.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("EpisodeGrab listening on %s", bind)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdown)
}
