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

// Command ctrtrain trains a logistic regression or factorization machine
// click-through-rate model over libsvm-style sparse data.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ctrtrain/internal/config"
	"ctrtrain/internal/dataset"
	"ctrtrain/internal/model"
	"ctrtrain/internal/model/fm"
	"ctrtrain/internal/model/lr"
	"ctrtrain/internal/pipeline"
	"ctrtrain/internal/telemetry"
	"ctrtrain/internal/telemetry/publish"
	"ctrtrain/internal/xlog"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		xlog.Fatalf("configuration error: %v", err)
	}
	if cfg.Debug {
		xlog.Infof("parsed configuration:\n%s", cfg.String())
	}

	k := buildKernel(cfg)

	if cfg.Load != "" {
		xlog.Infof("loading model from %s", cfg.Load)
		if err := k.Load(cfg.Load); err != nil {
			xlog.Fatalf("model load failed: %v", err)
		}
	}

	metrics := buildMetrics(cfg)
	metricsServer, err := metrics.StartServer(cfg.MetricsAddr)
	if err != nil {
		xlog.Warnf("metrics server did not start: %v", err)
	} else if metricsServer != nil {
		xlog.Infof("serving metrics on %s/metrics", cfg.MetricsAddr)
		defer telemetry.Shutdown(context.Background(), metricsServer)
	}

	progressPublisher := publish.New(cfg.ProgressRedisAddr, cfg.ProgressRedisKey)
	defer progressPublisher.Close()

	orch := pipeline.New(pipeline.Config{
		ParseThreads: cfg.PT,
		TrainThreads: cfg.TT,
		BatchSize:    cfg.BatchSize,
	})
	orch.Metrics = metrics
	orch.Publisher = progressPublisher

	ctx, cancel := signalContext()
	defer cancel()

	var lastAUC *float64
	for epoch := 0; epoch < cfg.Epoch; epoch++ {
		result, err := orch.RunEpoch(ctx, epoch, cfg.Train, cfg.Valid, k)
		if err != nil {
			// An epoch can stop early either because it was interrupted at
			// its boundary (SIGINT/SIGTERM) or because validation failed;
			// either way the run is incomplete, so it exits non-zero rather
			// than falling through to save/predict/summary as if nothing
			// happened.
			xlog.Warnf("epoch %d stopped early: %v", epoch, err)
			os.Exit(1)
		}
		lastAUC = result.AUC
		if result.AUC != nil {
			xlog.Infof("epoch %d done: %d samples in %s, valid AUC=%.4f", epoch, result.SamplesTrained, result.Duration, *result.AUC)
		} else {
			xlog.Infof("epoch %d done: %d samples in %s", epoch, result.SamplesTrained, result.Duration)
		}
	}

	if cfg.Save != "" {
		xlog.Infof("saving model to %s", cfg.Save)
		if err := k.Save(cfg.Save); err != nil {
			xlog.Fatalf("model save failed: %v", err)
		}
	}

	if cfg.Test != "" {
		if err := runPrediction(cfg, k); err != nil {
			xlog.Fatalf("prediction failed: %v", err)
		}
	}

	summary := map[string]string{
		"model":   cfg.Model,
		"epochs":  fmt.Sprintf("%d", cfg.Epoch),
		"weights": fmt.Sprintf("%d", k.Size()),
	}
	order := []string{"model", "epochs", "weights"}
	if lastAUC != nil {
		summary["valid_auc"] = fmt.Sprintf("%.4f", *lastAUC)
		order = append(order, "valid_auc")
	}
	xlog.Summary("training complete", summary, order)
}

func buildKernel(cfg *config.Config) model.Kernel {
	switch cfg.Model {
	case "lr":
		return lr.New(float32(cfg.WLR), float32(cfg.WL2))
	case "fm":
		return fm.New(cfg.Factor, float32(cfg.WLR), float32(cfg.VLR), float32(cfg.WL2), float32(cfg.VL2), float32(cfg.VStddev), cfg.Seed)
	default:
		xlog.Fatalf("unknown model type %q", cfg.Model)
		return nil
	}
}

func buildMetrics(cfg *config.Config) *telemetry.Metrics {
	if cfg.MetricsAddr == "" {
		return nil
	}
	return telemetry.New()
}

// signalContext returns a context canceled on SIGINT/SIGTERM, so the main
// epoch loop's cooperative check at the top of RunEpoch can stop before
// starting the next epoch rather than mid-batch.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx, stop
}

func runPrediction(cfg *config.Config, k model.Kernel) error {
	reader := dataset.NewLineReader(cfg.Test)
	defer reader.Close()
	reader.Reset()

	out, err := os.Create(cfg.TestPred)
	if err != nil {
		return fmt.Errorf("create %s: %w", cfg.TestPred, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		line, ok := reader.NextLine()
		if !ok {
			break
		}
		s := dataset.ParseLine(line)
		p := k.PredictProb(s, false)
		if _, err := fmt.Fprintf(w, "%v\n", p); err != nil {
			return fmt.Errorf("write prediction: %w", err)
		}
	}
	return nil
}
