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

// Package fm implements the sparse Factorization Machine kernel: predict,
// mini-batch gradient accumulation, SGD apply, and the tab-separated model
// file format. The pairwise term is computed in 8-wide blocks over the
// latent dimension, the same block width the reference implementation uses
// for its AVX __m256 lanes; this port keeps the block-wise accumulation
// order but uses plain slice loops rather than real SIMD.
package fm

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"

	"ctrtrain/internal/dataset"
	"ctrtrain/internal/model"
	"ctrtrain/internal/model/shardmap"
)

// laneWidth is the block size the pairwise term is accumulated in.
const laneWidth = 8

// weightRecord is the per-feature state: a linear weight and a latent
// embedding vector padded to a multiple of laneWidth. Lanes at index >= K
// are maintained at exactly 0 for the record's entire lifetime. Once
// published into the weight map, a record is never mutated in place — SGD
// apply always publishes a brand new record via InsertOrAssign, so any
// pointer returned by Find stays a consistent, immutable snapshot for as
// long as the reader holds it.
type weightRecord struct {
	w float32
	v []float32
}

// gradRecord is the per-batch, per-feature gradient accumulator.
type gradRecord struct {
	w float32
	v []float32
}

// Kernel is a sparse Factorization Machine of latent dimension K.
type Kernel struct {
	k, npad  int
	wLR, vLR float32
	wL2, vL2 float32
	stddev   float32
	weights  *shardmap.Map[*weightRecord]
	bias     model.AtomicFloat32
	rng      *rand.Rand
	rngMu    sync.Mutex
}

// scratch is the goroutine-local gradient accumulator a trainer goroutine
// allocates once (via NewScratch) and reuses across every batch it
// processes.
type scratch struct {
	grad map[uint32]*gradRecord
}

// NewScratch allocates a fresh per-goroutine gradient map for Learn to reuse.
func (k *Kernel) NewScratch() any {
	return &scratch{grad: make(map[uint32]*gradRecord, 64)}
}

// New creates an FM kernel of latent dimension factor. If seed != -1 the
// embedding initializer is deterministic, but determinism additionally
// requires the caller to drive training with a single parser and a single
// trainer (see the pipeline orchestrator).
func New(factor int, wLR, vLR, wL2, vL2, stddev float32, seed int64) *Kernel {
	npad := ((factor + laneWidth - 1) / laneWidth) * laneWidth

	var src rand.Source
	if seed != -1 {
		src = rand.NewSource(seed)
	} else {
		src = rand.NewSource(rand.Int63())
	}

	k := &Kernel{
		k:       factor,
		npad:    npad,
		wLR:     wLR,
		vLR:     vLR,
		wL2:     wL2,
		vL2:     vL2,
		stddev:  stddev,
		weights: shardmap.New[*weightRecord](shardmap.DefaultShards),
		rng:     rand.New(src),
	}
	return k
}

// newRecord allocates a fresh weight record with a gaussian-initialized
// embedding. The shared *rand.Rand is not safe for lock-free concurrent use
// (unlike the weight map itself), so access is serialized with a small
// mutex; this only matters for throughput in the unseeded, multi-trainer
// case, since the seeded deterministic case already requires single-
// threaded training.
func (k *Kernel) newRecord() *weightRecord {
	v := make([]float32, k.npad)
	k.rngMu.Lock()
	for i := 0; i < k.k; i++ {
		v[i] = float32(k.rng.NormFloat64()) * k.stddev
	}
	k.rngMu.Unlock()
	return &weightRecord{v: v}
}

// getOrInit returns the weight record for idx. Under training, an unseen
// feature is lazily materialized; under inference, a missing feature
// returns nil and contributes nothing.
func (k *Kernel) getOrInit(idx uint32, training bool) *weightRecord {
	if r, ok := k.weights.Find(idx); ok {
		return r
	}
	if !training {
		return nil
	}
	r := k.newRecord()
	if !k.weights.Insert(idx, r) {
		r, _ = k.weights.Find(idx)
	}
	return r
}

type featureRef struct {
	idx uint32
	val float32
	rec *weightRecord
}

// gather resolves every feature in the sample to its weight record,
// dropping features absent under inference. Order is preserved and
// duplicate feature ids are not merged, matching the sparse vector's
// no-deduplication invariant.
func (k *Kernel) gather(s dataset.Sample, training bool) []featureRef {
	refs := make([]featureRef, 0, len(s.X))
	for _, f := range s.X {
		r := k.getOrInit(f.Idx, training)
		if r == nil {
			continue
		}
		refs = append(refs, featureRef{idx: f.Idx, val: f.Val, rec: r})
	}
	return refs
}

// PredictProb implements bias + sum_i w_i*x_i
// + 1/2 * sum_j ((sum_i v_{i,j}*x_i)^2 - sum_i (v_{i,j}*x_i)^2), then sigmoid.
func (k *Kernel) PredictProb(s dataset.Sample, training bool) float32 {
	refs := k.gather(s, training)

	p := k.bias.Load()
	for _, r := range refs {
		p += r.rec.w * r.val
	}

	var res float32
	var sum, sumsq [laneWidth]float32
	for j := 0; j < k.npad; j += laneWidth {
		for l := range sum {
			sum[l], sumsq[l] = 0, 0
		}
		for _, r := range refs {
			for l := 0; l < laneWidth; l++ {
				vx := r.rec.v[j+l] * r.val
				sum[l] += vx
				sumsq[l] += vx * vx
			}
		}
		for l := 0; l < laneWidth; l++ {
			res += sum[l]*sum[l] - sumsq[l]
		}
	}
	p += 0.5 * res

	return model.Sigmoid(p)
}

// Learn applies one mini-batch SGD step, accumulating gradients into sc's
// map (reused across calls, not pooled). Safe to call concurrently from
// multiple trainer goroutines, each with its own scratch and a disjoint
// batch; updates to shared features race Hogwild-style through the weight
// map, exactly as for the linear kernel.
func (k *Kernel) Learn(batch []dataset.Sample, sc any) {
	gm := sc.(*scratch).grad
	clear(gm)

	n := float32(len(batch))
	var biasGrad float32

	for _, s := range batch {
		p := k.PredictProb(s, true)
		t := float32(s.Y) - p
		biasGrad += t / n

		refs := k.gather(s, true)

		for j := 0; j < k.npad; j += laneWidth {
			var sumVX [laneWidth]float32
			for l := range sumVX {
				sumVX[l] = 0
			}
			for _, r := range refs {
				for l := 0; l < laneWidth; l++ {
					sumVX[l] += r.rec.v[j+l] * r.val
				}
			}
			for _, r := range refs {
				g := k.gradFor(gm, r.idx)
				if j == 0 {
					g.w += (t*r.val - k.wL2*r.rec.w) / n
				}
				for l := 0; l < laneWidth; l++ {
					vij := r.rec.v[j+l]
					gBlock := (sumVX[l]*r.val-vij*r.val*r.val)*t - k.vL2*vij
					g.v[j+l] += gBlock / n
				}
			}
		}
	}

	for idx, g := range gm {
		r, ok := k.weights.Find(idx)
		if !ok {
			continue
		}
		// Never mutate the record found through the shared map in place:
		// another trainer goroutine may hold the same pointer concurrently.
		// Build a fresh record locally and publish it atomically via
		// InsertOrAssign, the same find-then-replace pattern the linear
		// kernel uses for its (by-value) weights.
		nv := make([]float32, k.npad)
		copy(nv, r.v)
		for l := 0; l < k.npad; l++ {
			nv[l] += k.vLR * g.v[l]
		}
		k.weights.InsertOrAssign(idx, &weightRecord{w: r.w + k.wLR*g.w, v: nv})
	}
	k.bias.Add(k.wLR * biasGrad)
}

func (k *Kernel) gradFor(gm map[uint32]*gradRecord, idx uint32) *gradRecord {
	g, ok := gm[idx]
	if !ok {
		g = &gradRecord{v: make([]float32, k.npad)}
		gm[idx] = g
	}
	return g
}

// Size returns the number of distinct features the model holds weights for.
func (k *Kernel) Size() int {
	return k.weights.Size()
}

// Save writes the model as "k\t<K>", "bias\t<bias>", then one
// "idx\tw\tv0\t...\tv_{K-1}" line per feature (only the first K lanes are
// persisted; the padding beyond K is never written since it is always 0).
func (k *Kernel) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fm: save: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "k\t%d\n", k.k)
	fmt.Fprintf(w, "bias\t%s\n", formatFloat(k.bias.Load()))

	var writeErr error
	k.weights.LockedScan(func(idx uint32, r *weightRecord) {
		if writeErr != nil {
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d\t%s", idx, formatFloat(r.w))
		for i := 0; i < k.k; i++ {
			b.WriteByte('\t')
			b.WriteString(formatFloat(r.v[i]))
		}
		b.WriteByte('\n')
		_, writeErr = w.WriteString(b.String())
	})
	if writeErr != nil {
		return fmt.Errorf("fm: save: %w", writeErr)
	}
	return w.Flush()
}

// Load reads a model previously written by Save. The first line's first
// token must be "k" and must match this kernel's configured latent
// dimension; the second line's first token must be "bias"; every weight
// line must carry exactly K+2 tab-separated tokens. Any mismatch is
// reported as an error (the original implementation logs and returns 0,
// which its caller treats as fatal — returning an error here lets the Go
// caller decide how to report it, with the same fatal outcome).
func (k *Kernel) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("fm: load: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	if !sc.Scan() {
		return fmt.Errorf("fm: load: empty model file")
	}
	kLine := strings.Fields(sc.Text())
	if len(kLine) != 2 || kLine[0] != "k" {
		return fmt.Errorf("fm: load: expected \"k\\t<value>\" header, got %q", sc.Text())
	}
	loadedK, err := strconv.Atoi(kLine[1])
	if err != nil {
		return fmt.Errorf("fm: load: bad k value %q: %w", kLine[1], err)
	}
	if loadedK != k.k {
		return fmt.Errorf("fm: load: model file has k=%d, kernel configured for k=%d", loadedK, k.k)
	}

	if !sc.Scan() {
		return fmt.Errorf("fm: load: missing bias header")
	}
	biasLine := strings.Fields(sc.Text())
	if len(biasLine) != 2 || biasLine[0] != "bias" {
		return fmt.Errorf("fm: load: expected \"bias\\t<value>\" header, got %q", sc.Text())
	}
	bias, err := strconv.ParseFloat(biasLine[1], 32)
	if err != nil {
		return fmt.Errorf("fm: load: bad bias value %q: %w", biasLine[1], err)
	}
	k.bias.Store(float32(bias))

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != k.k+2 {
			return fmt.Errorf("fm: load: expected %d tokens, got %d in %q", k.k+2, len(fields), line)
		}
		idx, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return fmt.Errorf("fm: load: bad feature id %q: %w", fields[0], err)
		}
		wt, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return fmt.Errorf("fm: load: bad weight %q: %w", fields[1], err)
		}
		v := make([]float32, k.npad)
		for i := 0; i < k.k; i++ {
			vi, err := strconv.ParseFloat(fields[2+i], 32)
			if err != nil {
				return fmt.Errorf("fm: load: bad v[%d] %q: %w", i, fields[2+i], err)
			}
			v[i] = float32(vi)
		}
		k.weights.InsertOrAssign(uint32(idx), &weightRecord{w: float32(wt), v: v})
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("fm: load: %w", err)
	}
	return nil
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
