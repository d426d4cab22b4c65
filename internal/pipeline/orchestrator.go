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

// Package pipeline drives one epoch of the producer/consumer training
// pipeline: a line-batching producer, a pool of parser workers, and a pool
// of trainer workers connected by two bounded queues, followed by an
// optional single-threaded validation pass.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ctrtrain/internal/dataset"
	"ctrtrain/internal/metric"
	"ctrtrain/internal/model"
	"ctrtrain/internal/queue"
	"ctrtrain/internal/telemetry"
	"ctrtrain/internal/telemetry/publish"
	"ctrtrain/internal/xlog"
)

// Config holds the tunables that stay fixed across every epoch of a run.
type Config struct {
	ParseThreads  int
	TrainThreads  int
	BatchSize     int
	Step          int64 // progress log cadence; 0 selects DefaultStep, negative disables
	QueueCapacity int
}

// DefaultStep matches the reference implementation's progress cadence.
const DefaultStep = 1_000_000

// DefaultQueueCapacity is the bounded-queue capacity used for both
// line_queue and sample_queue.
const DefaultQueueCapacity = 100

// Orchestrator runs epochs of the training pipeline against a model.Kernel.
// Metrics and Publisher are both nil-safe no-ops when disabled.
type Orchestrator struct {
	cfg       Config
	Metrics   *telemetry.Metrics
	Publisher *publish.Publisher
}

// New creates an Orchestrator, filling in defaults for any zero-valued
// tunable.
func New(cfg Config) *Orchestrator {
	if cfg.Step == 0 {
		cfg.Step = DefaultStep
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.ParseThreads <= 0 {
		cfg.ParseThreads = 1
	}
	if cfg.TrainThreads <= 0 {
		cfg.TrainThreads = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &Orchestrator{cfg: cfg}
}

// EpochResult summarizes one completed epoch.
type EpochResult struct {
	SamplesTrained int64
	Duration       time.Duration
	AUC            *float64
}

// RunEpoch executes one full epoch: fresh queues, a fresh pool of parser
// and trainer workers, line batching off a freshly-reset LineReader, strict
// sentinel sequencing (line_queue sentinels, join parsers, sample_queue
// sentinels, join trainers), and an optional validation pass. If ctx is
// already canceled when called, it returns immediately without starting any
// worker — the cooperative cancellation point is the epoch boundary, not
// mid-batch.
func (o *Orchestrator) RunEpoch(ctx context.Context, epochIdx int, trainPath, validPath string, k model.Kernel) (EpochResult, error) {
	select {
	case <-ctx.Done():
		return EpochResult{}, ctx.Err()
	default:
	}

	start := time.Now()

	lineQueue := queue.NewBounded[[][]byte](o.cfg.QueueCapacity)
	sampleQueue := queue.NewBounded[[]dataset.Sample](o.cfg.QueueCapacity)
	progress := newProgressTracker(o.cfg.Step)

	var parseWG sync.WaitGroup
	for i := 0; i < o.cfg.ParseThreads; i++ {
		parseWG.Add(1)
		go o.parseWorker(lineQueue, sampleQueue, &parseWG)
	}

	var trainWG sync.WaitGroup
	for i := 0; i < o.cfg.TrainThreads; i++ {
		trainWG.Add(1)
		go o.trainWorker(sampleQueue, k, progress, &trainWG)
	}

	reader := dataset.NewLineReader(trainPath)
	reader.Reset()

	batch := make([][]byte, 0, o.cfg.BatchSize)
	for {
		line, ok := reader.NextLine()
		if !ok {
			break
		}
		// The LineReader's buffer is reused on the next refill, so a line
		// handed across a queue boundary must be copied out first.
		owned := make([]byte, len(line))
		copy(owned, line)
		batch = append(batch, owned)

		if len(batch) == o.cfg.BatchSize {
			lineQueue.Push(batch)
			o.Metrics.SetLineQueueDepth(lineQueue.Len())
			o.Metrics.SetSampleQueueDepth(sampleQueue.Len())
			batch = make([][]byte, 0, o.cfg.BatchSize)
		}
	}
	if len(batch) > 0 {
		lineQueue.Push(batch)
	}
	reader.Close()

	for i := 0; i < o.cfg.ParseThreads; i++ {
		lineQueue.PushDone()
	}
	parseWG.Wait()

	for i := 0; i < o.cfg.TrainThreads; i++ {
		sampleQueue.PushDone()
	}
	trainWG.Wait()

	o.Metrics.SetWeightMapSize(k.Size())

	result := EpochResult{SamplesTrained: progress.Total(), Duration: time.Since(start)}

	if validPath != "" {
		auc, err := o.Validate(validPath, k)
		if err != nil {
			return result, fmt.Errorf("pipeline: epoch %d validation: %w", epochIdx, err)
		}
		result.AUC = &auc
		o.Metrics.SetEpochAUC(auc)
	}
	o.Metrics.ObserveEpochDuration(result.Duration)

	if o.Publisher != nil {
		progressMsg := publish.Progress{
			Epoch:          epochIdx,
			SamplesTrained: result.SamplesTrained,
			ElapsedSeconds: result.Duration.Seconds(),
			AUC:            result.AUC,
			WeightMapSize:  k.Size(),
		}
		if err := o.Publisher.Publish(ctx, progressMsg); err != nil {
			xlog.Warnf("progress publish failed: %v", err)
		}
	}

	return result, nil
}

func (o *Orchestrator) parseWorker(in *queue.Bounded[[][]byte], out *queue.Bounded[[]dataset.Sample], wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		lines, ok := in.Pop()
		if !ok {
			return
		}
		samples := make([]dataset.Sample, len(lines))
		for i, line := range lines {
			samples[i] = dataset.ParseLine(line)
		}
		out.Push(samples)
	}
}

func (o *Orchestrator) trainWorker(in *queue.Bounded[[]dataset.Sample], k model.Kernel, progress *progressTracker, wg *sync.WaitGroup) {
	defer wg.Done()
	// One scratch value per goroutine, for this goroutine's entire
	// lifetime: never pooled, never shared with another trainer goroutine.
	scratch := k.NewScratch()
	for {
		batch, ok := in.Pop()
		if !ok {
			return
		}
		k.Learn(batch, scratch)
		progress.Add(len(batch))
		o.Metrics.AddSamplesTrained(len(batch))
		o.Metrics.AddBatchTrained()
	}
}

// Validate runs a single-threaded pass over validPath, computing
// predict_prob(sample, training=false) for every line and reporting the
// resulting ROC-AUC.
func (o *Orchestrator) Validate(validPath string, k model.Kernel) (float64, error) {
	reader := dataset.NewLineReader(validPath)
	defer reader.Close()
	reader.Reset()

	var preds []float32
	var labels []uint32
	for {
		line, ok := reader.NextLine()
		if !ok {
			break
		}
		s := dataset.ParseLine(line)
		preds = append(preds, k.PredictProb(s, false))
		labels = append(labels, s.Y)
	}

	return metric.AUC(preds, labels), nil
}
