// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes optional Prometheus instrumentation for the
// training pipeline: throughput counters, queue-depth and weight-map-size
// gauges, and per-epoch AUC/duration. Instrumentation is opt-in — a nil
// *Metrics is a valid, fully functional no-op, so call sites never need to
// branch on whether metrics were requested.
package telemetry

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the training pipeline's Prometheus collectors. The zero
// value is not valid; construct with New. A nil *Metrics is valid and every
// method on it is a no-op, so callers can pass a nil pointer whenever
// metrics are disabled.
type Metrics struct {
	registry *prometheus.Registry

	samplesTrained   prometheus.Counter
	batchesTrained   prometheus.Counter
	lineQueueDepth   prometheus.Gauge
	sampleQueueDepth prometheus.Gauge
	weightMapSize    prometheus.Gauge
	epochAUC         prometheus.Gauge
	epochDuration    prometheus.Histogram
}

// New creates a Metrics instance registered against a private registry (so
// that running the same process twice in tests never collides with the
// default global registry).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		samplesTrained: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ctrtrain",
			Name:      "samples_trained_total",
			Help:      "Total number of samples consumed by trainer workers.",
		}),
		batchesTrained: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ctrtrain",
			Name:      "batches_trained_total",
			Help:      "Total number of mini-batches applied by trainer workers.",
		}),
		lineQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ctrtrain",
			Name:      "line_queue_depth",
			Help:      "Current number of line batches waiting in line_queue.",
		}),
		sampleQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ctrtrain",
			Name:      "sample_queue_depth",
			Help:      "Current number of sample batches waiting in sample_queue.",
		}),
		weightMapSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ctrtrain",
			Name:      "weight_map_size",
			Help:      "Number of distinct features currently held in the weight map.",
		}),
		epochAUC: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ctrtrain",
			Name:      "epoch_auc",
			Help:      "Validation ROC-AUC reported after the most recently completed epoch.",
		}),
		epochDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ctrtrain",
			Name:      "epoch_duration_seconds",
			Help:      "Wall-clock duration of a full training epoch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (m *Metrics) AddSamplesTrained(n int) {
	if m == nil {
		return
	}
	m.samplesTrained.Add(float64(n))
}

func (m *Metrics) AddBatchTrained() {
	if m == nil {
		return
	}
	m.batchesTrained.Inc()
}

func (m *Metrics) SetLineQueueDepth(n int) {
	if m == nil {
		return
	}
	m.lineQueueDepth.Set(float64(n))
}

func (m *Metrics) SetSampleQueueDepth(n int) {
	if m == nil {
		return
	}
	m.sampleQueueDepth.Set(float64(n))
}

func (m *Metrics) SetWeightMapSize(n int) {
	if m == nil {
		return
	}
	m.weightMapSize.Set(float64(n))
}

func (m *Metrics) SetEpochAUC(auc float64) {
	if m == nil {
		return
	}
	m.epochAUC.Set(auc)
}

func (m *Metrics) ObserveEpochDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.epochDuration.Observe(d.Seconds())
}

// StartServer launches a /metrics HTTP endpoint on addr in the background.
// It returns the *http.Server so the caller can Shutdown it; a nil Metrics
// or empty addr returns (nil, nil) without starting anything.
func (m *Metrics) StartServer(addr string) (*http.Server, error) {
	if m == nil || addr == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: listen on %s: %w", addr, err)
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return srv, nil
}

// Shutdown gracefully stops a server started by StartServer. Safe to call
// with a nil server.
func Shutdown(ctx context.Context, srv *http.Server) error {
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
