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

// Package lr implements the sparse logistic regression kernel: prediction,
// mini-batch gradient accumulation, SGD apply, and the tab-separated model
// file format.
package lr

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ctrtrain/internal/dataset"
	"ctrtrain/internal/model"
	"ctrtrain/internal/model/shardmap"
)

// Kernel is a sparse logistic regression model: p = sigmoid(bias + w . x).
type Kernel struct {
	lr, l2 float32

	weights *shardmap.Map[float32]
	bias    model.AtomicFloat32
}

// scratch is the goroutine-local gradient accumulator a trainer goroutine
// allocates once and reuses across every batch it processes.
type scratch struct {
	grad map[uint32]float32
}

// NewScratch allocates a fresh per-goroutine gradient map for Learn to reuse.
func (k *Kernel) NewScratch() any {
	return &scratch{grad: make(map[uint32]float32, 64)}
}

// New creates an LR kernel with the given learning rate and L2 penalty and
// no preloaded weights.
func New(lr, l2 float32) *Kernel {
	return &Kernel{
		lr:      lr,
		l2:      l2,
		weights: shardmap.New[float32](shardmap.DefaultShards),
	}
}

// PredictProb returns sigmoid(bias + sum of w_i * x_i). Under training, a
// feature never seen before is inserted with weight 0 so the batch's
// gradient pass (and SGD apply) has an entry to update; under inference, an
// unseen feature simply contributes nothing.
func (k *Kernel) PredictProb(s dataset.Sample, training bool) float32 {
	p := k.bias.Load()
	for _, f := range s.X {
		w, ok := k.weights.Find(f.Idx)
		if !ok {
			if training {
				k.weights.Insert(f.Idx, 0)
			}
			continue
		}
		p += w * f.Val
	}
	return model.Sigmoid(p)
}

// Learn applies one mini-batch SGD step, accumulating gradients into sc's
// map (reused across calls, not pooled). Safe to call concurrently from
// multiple trainer goroutines, each with its own scratch and a disjoint
// batch; updates to shared features race Hogwild-style through the weight
// map.
func (k *Kernel) Learn(batch []dataset.Sample, sc any) {
	gm := sc.(*scratch).grad
	clear(gm)

	n := float32(len(batch))
	var biasGrad float32

	for _, s := range batch {
		p := k.PredictProb(s, true)
		t := float32(s.Y) - p
		biasGrad += t / n
		for _, f := range s.X {
			w, _ := k.weights.Find(f.Idx)
			gm[f.Idx] += (t*f.Val - k.l2*w) / n
		}
	}

	for idx, g := range gm {
		w, _ := k.weights.Find(idx)
		k.weights.InsertOrAssign(idx, w+k.lr*g)
	}
	k.bias.Add(k.lr * biasGrad)
}

// Size returns the number of distinct features the model holds weights for.
func (k *Kernel) Size() int {
	return k.weights.Size()
}

// Save writes the model in the "bias\t<bias>" then "idx\tw" tab-separated
// format.
func (k *Kernel) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("lr: save: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "bias\t%s\n", formatFloat(k.bias.Load()))

	var writeErr error
	k.weights.LockedScan(func(idx uint32, wt float32) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintf(w, "%d\t%s\n", idx, formatFloat(wt))
	})
	if writeErr != nil {
		return fmt.Errorf("lr: save: %w", writeErr)
	}
	return w.Flush()
}

// Load reads a model previously written by Save, adding entries to any
// weights already present (it does not clear the model first). The header
// line must start with the literal token "bias"; any other deviation,
// including a malformed trailing line, is reported as an error rather than
// silently inserting a spurious (0, 0.0) entry.
func (k *Kernel) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("lr: load: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	if !sc.Scan() {
		return fmt.Errorf("lr: load: empty model file")
	}
	header := strings.Fields(sc.Text())
	if len(header) != 2 || header[0] != "bias" {
		return fmt.Errorf("lr: load: expected \"bias\\t<value>\" header, got %q", sc.Text())
	}
	bias, err := strconv.ParseFloat(header[1], 32)
	if err != nil {
		return fmt.Errorf("lr: load: bad bias value %q: %w", header[1], err)
	}
	k.bias.Store(float32(bias))

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			// A trailing blank line (e.g. from a hand-edited file) is
			// skipped rather than parsed into a spurious zero-weight
			// entry.
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("lr: load: expected \"idx\\tw\", got %q", line)
		}
		idx, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return fmt.Errorf("lr: load: bad feature id %q: %w", fields[0], err)
		}
		wt, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return fmt.Errorf("lr: load: bad weight %q: %w", fields[1], err)
		}
		k.weights.InsertOrAssign(uint32(idx), float32(wt))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("lr: load: %w", err)
	}
	return nil
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
