// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// EpisodeGrab - 剧集流下载工具

// Package metrics exposes download counters in the Prometheus format.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/ZSC714725/episodegrab/internal/progress"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Episode results
const (
	ResultFinished  = "finished"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
	ResultCancelled = "cancelled"
)

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	episodes   *prometheus.CounterVec
	active     prometheus.Gauge
	kibibytes  prometheus.Counter
	duration   prometheus.Histogram
	completion prometheus.Gauge
}

// New registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		episodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "episodegrab_episodes_total",
				Help: "Episodes handled, by result",
			},
			[]string{"result"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "episodegrab_active_downloads",
				Help: "FFmpeg processes currently copying a stream",
			},
		),
		kibibytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "episodegrab_downloaded_kibibytes_total",
				Help: "KiB written by FFmpeg as reported in its progress lines",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "episodegrab_download_seconds",
				Help:    "Wall time of finished episode downloads",
				Buckets: prometheus.ExponentialBuckets(15, 2, 10),
			},
		),
		completion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "episodegrab_current_percent",
				Help: "Completion of the episode being downloaded",
			},
		),
	}

	m.registry.MustRegister(
		m.episodes,
		m.active,
		m.kibibytes,
		m.duration,
		m.completion,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, r := range []string{ResultFinished, ResultFailed, ResultSkipped, ResultCancelled} {
		m.episodes.WithLabelValues(r)
	}

	return m
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Episode counts a handled episode
func (m *Metrics) Episode(result string) {
	m.episodes.WithLabelValues(result).Inc()
}

// Started marks the start of a download. The returned func ends it and
// records its duration when finished is true.
func (m *Metrics) Started() func(finished bool) {
	m.active.Inc()
	m.completion.Set(0)
	start := time.Now()

	var once sync.Once
	return func(finished bool) {
		once.Do(func() {
			m.active.Dec()
			if finished {
				m.duration.Observe(time.Since(start).Seconds())
			}
		})
	}
}

// Observer returns a progress observer for one download. It adds the KiB
// written since the previous sample to the total.
func (m *Metrics) Observer() progress.Observer {
	var last int64
	return progress.ObserverFunc(func(e progress.Event) {
		switch e.Kind {
		case progress.EventProgress:
			if delta := e.Sample.KiB - last; delta > 0 {
				m.kibibytes.Add(float64(delta))
				last = e.Sample.KiB
			}
			m.completion.Set(e.Percent)
		case progress.EventComplete:
			m.completion.Set(100)
		}
	})
}
