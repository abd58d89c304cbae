// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Download DownloadConfig `yaml:"download"`
	IMDb     IMDbConfig     `yaml:"imdb"`
	Resolver ResolverConfig `yaml:"resolver"`
	Progress ProgressConfig `yaml:"progress"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path         string       `yaml:"path"`
	StaleTimeout uint64       `yaml:"stale_timeout_seconds"`
	LogLines     int          `yaml:"log_lines"`
	Access       AccessConfig `yaml:"access"`
}

// AccessConfig holds allow/block expressions for FFmpeg inputs and outputs
type AccessConfig struct {
	Input  Rules `yaml:"input"`
	Output Rules `yaml:"output"`
}

// Rules are regular expressions
type Rules struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// DownloadConfig 下载配置
type DownloadConfig struct {
	Dir       string   `yaml:"dir"`
	Extension string   `yaml:"extension"`
	Headers   []string `yaml:"headers"`
}

// IMDbConfig 剧集信息来源
type IMDbConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// ResolverConfig 播放地址解析
type ResolverConfig struct {
	URL     string `yaml:"url"`
	Timeout uint64 `yaml:"timeout_seconds"`
	Probe   bool   `yaml:"probe"`
}

// ProgressConfig 进度显示
type ProgressConfig struct {
	BarBeforeBitrate bool `yaml:"bar_before_bitrate"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultBind         = ":8080"
	defaultFFmpeg       = "ffmpeg"
	defaultStaleTimeout = 60
	defaultLogLines     = 100
	defaultExtension    = "mp4"
	defaultIMDb         = "https://www.imdb.com"
	defaultUserAgent    = "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0"
	defaultTimeout      = 30
	defaultLevel        = "info"
)

// DefaultHeaders are sent to the stream host on every request
var DefaultHeaders = []string{
	"user-agent: " + defaultUserAgent,
	"accept: */*",
	"accept-language: en-US,en;q=0.5",
	"dnt: 1",
	"sec-fetch-dest: empty",
	"sec-fetch-mode: cors",
	"sec-fetch-site: cross-site",
	"sec-gpc: 1",
	"te: trailers",
	"Accept-Encoding: deflate, gzip, zstd",
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{Bind: defaultBind},
		FFmpeg: FFmpegConfig{
			Path:         defaultFFmpeg,
			StaleTimeout: defaultStaleTimeout,
			LogLines:     defaultLogLines,
		},
		Download: DownloadConfig{
			Dir:       defaultDir(),
			Extension: defaultExtension,
			Headers:   append([]string(nil), DefaultHeaders...),
		},
		IMDb:     IMDbConfig{BaseURL: defaultIMDb, UserAgent: defaultUserAgent},
		Resolver: ResolverConfig{Timeout: defaultTimeout, Probe: true},
		Log:      LogConfig{Level: defaultLevel},
	}
	return cfg
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Videos"
	}
	return filepath.Join(home, "Videos")
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 填充空值
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = defaultBind
	}
	if cfg.FFmpeg.Path == "" {
		cfg.FFmpeg.Path = defaultFFmpeg
	}
	if cfg.FFmpeg.LogLines <= 0 {
		cfg.FFmpeg.LogLines = defaultLogLines
	}
	if cfg.Download.Dir == "" {
		cfg.Download.Dir = defaultDir()
	}
	if cfg.Download.Extension == "" {
		cfg.Download.Extension = defaultExtension
	}
	if cfg.IMDb.BaseURL == "" {
		cfg.IMDb.BaseURL = defaultIMDb
	}
	if cfg.IMDb.UserAgent == "" {
		cfg.IMDb.UserAgent = defaultUserAgent
	}
	if cfg.Resolver.Timeout == 0 {
		cfg.Resolver.Timeout = defaultTimeout
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLevel
	}

	return cfg, nil
}

// StaleTimeoutDuration is the stale timeout, zero disables the watchdog
func (c FFmpegConfig) StaleTimeoutDuration() time.Duration {
	return time.Duration(c.StaleTimeout) * time.Second
}

// TimeoutDuration is the HTTP timeout of the resolver
func (c ResolverConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
