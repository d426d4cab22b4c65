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

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"ctrtrain/internal/dataset"
)

// fakeKernel counts samples learned and predicts a fixed probability per
// label so the test can exercise the pipeline and validation paths without
// depending on the lr/fm packages.
type fakeKernel struct {
	learned int64
}

func (f *fakeKernel) NewScratch() any { return nil }

func (f *fakeKernel) Learn(batch []dataset.Sample, scratch any) {
	atomic.AddInt64(&f.learned, int64(len(batch)))
}

func (f *fakeKernel) PredictProb(s dataset.Sample, training bool) float32 {
	if s.Y == 1 {
		return 0.9
	}
	return 0.1
}

func (f *fakeKernel) Save(path string) error { return nil }
func (f *fakeKernel) Load(path string) error { return nil }
func (f *fakeKernel) Size() int              { return 0 }

func writeDataset(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.txt")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	for i := 0; i < n; i++ {
		y := i % 2
		if _, err := f.WriteString(formatLine(y, i)); err != nil {
			t.Fatalf("WriteString: %v", err)
		}
	}
	return path
}

func formatLine(y, idx int) string {
	return itoa(y) + " " + itoa(idx) + ":1.0\n"
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	p := len(buf)
	for v > 0 {
		p--
		buf[p] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		p--
		buf[p] = '-'
	}
	return string(buf[p:])
}

func TestRunEpoch_AllSamplesTrainedNoneLost(t *testing.T) {
	const n = 2000
	path := writeDataset(t, n)

	o := New(Config{ParseThreads: 3, TrainThreads: 2, BatchSize: 17, Step: 0})
	k := &fakeKernel{}

	result, err := o.RunEpoch(context.Background(), 0, path, "", k)
	if err != nil {
		t.Fatalf("RunEpoch() error = %v", err)
	}
	if result.SamplesTrained != n {
		t.Fatalf("SamplesTrained = %d, want %d", result.SamplesTrained, n)
	}
	if k.learned != n {
		t.Fatalf("kernel learned %d samples, want %d", k.learned, n)
	}
}

func TestRunEpoch_WithValidationReportsAUC(t *testing.T) {
	trainPath := writeDataset(t, 200)
	validPath := writeDataset(t, 50)

	o := New(Config{ParseThreads: 1, TrainThreads: 1, BatchSize: 16})
	k := &fakeKernel{}

	result, err := o.RunEpoch(context.Background(), 0, trainPath, validPath, k)
	if err != nil {
		t.Fatalf("RunEpoch() error = %v", err)
	}
	if result.AUC == nil {
		t.Fatalf("AUC = nil, want a value")
	}
	// fakeKernel predicts 0.9 for positives and 0.1 for negatives: a
	// perfect ranking, so AUC must be exactly 1.
	if *result.AUC != 1 {
		t.Fatalf("AUC = %v, want 1", *result.AUC)
	}
}

func TestRunEpoch_CanceledContextSkipsEpoch(t *testing.T) {
	path := writeDataset(t, 10)
	o := New(Config{ParseThreads: 1, TrainThreads: 1, BatchSize: 4})
	k := &fakeKernel{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.RunEpoch(ctx, 0, path, "", k); err == nil {
		t.Fatalf("RunEpoch() error = nil, want context.Canceled")
	}
	if k.learned != 0 {
		t.Fatalf("kernel learned %d samples on a canceled epoch, want 0", k.learned)
	}
}
