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

// Package shardmap implements the concurrent feature-id -> weight map that
// trainer goroutines update in parallel during mini-batch SGD.
//
// Rather than one flat map guarded by a single lock, keys are distributed
// across shards by a rendezvous hash over the feature id, so that concurrent
// updates to different shards never contend on the same lock.
//
// Every operation is safe under arbitrary concurrent callers. Two trainer
// goroutines racing on the *same* key see last-writer-wins at the entry
// level — there is deliberately no cross-entry atomicity, and no single
// lock ever serializes all updates (that would defeat the Hogwild-style
// design the kernels rely on).
package shardmap

import (
	"sort"
	"strconv"
	"sync"

	rendezvous "github.com/dgryski/go-rendezvous"
)

// DefaultShards is used when a non-positive shard count is requested.
const DefaultShards = 32

type shard[V any] struct {
	mu sync.RWMutex
	m  map[uint32]V
}

// Map is a concurrent mapping from feature id (uint32) to a weight record
// of type V, sharded by rendezvous hashing over the key.
type Map[V any] struct {
	shards []*shard[V]
	nodes  []string
	rdv    *rendezvous.Rendezvous
}

// New creates a Map with the given number of shards (rounded up to
// DefaultShards if numShards <= 0).
func New[V any](numShards int) *Map[V] {
	if numShards <= 0 {
		numShards = DefaultShards
	}
	nodes := make([]string, numShards)
	shards := make([]*shard[V], numShards)
	for i := range shards {
		nodes[i] = strconv.Itoa(i)
		shards[i] = &shard[V]{m: make(map[uint32]V)}
	}
	return &Map[V]{
		shards: shards,
		nodes:  nodes,
		rdv:    rendezvous.New(nodes, hashKey),
	}
}

func hashKey(s string) uint64 {
	// FNV-1a 64-bit; fast and allocation-free.
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

func (m *Map[V]) shardFor(key uint32) *shard[V] {
	node := m.rdv.Lookup(strconv.FormatUint(uint64(key), 10))
	idx, _ := strconv.Atoi(node)
	return m.shards[idx]
}

// Find atomically copies out the value for key. The second return reports
// whether key was present.
func (m *Map[V]) Find(key uint32) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Insert inserts v for key only if key is absent. Returns true if the
// insertion happened.
func (m *Map[V]) Insert(key uint32, v V) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; ok {
		return false
	}
	s.m[key] = v
	return true
}

// InsertOrAssign upserts v for key unconditionally.
func (m *Map[V]) InsertOrAssign(key uint32, v V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

// Size returns the total number of entries across all shards. It takes a
// read lock on each shard in turn (not a single global lock), so it may
// observe a size that is momentarily stale with respect to concurrent
// writers — acceptable for a monitoring/reporting operation.
func (m *Map[V]) Size() int {
	total := 0
	for _, s := range m.shards {
		s.mu.RLock()
		total += len(s.m)
		s.mu.RUnlock()
	}
	return total
}

// LockedScan iterates every entry while the whole map is globally locked
// (all shards held for the duration of the scan, acquired in a fixed shard
// order to avoid deadlock against concurrent LockedScan callers). Used only
// for Save, which must see a consistent snapshot.
func (m *Map[V]) LockedScan(fn func(key uint32, v V)) {
	order := make([]int, len(m.shards))
	for i := range order {
		order[i] = i
	}
	sort.Ints(order)

	for _, i := range order {
		m.shards[i].mu.RLock()
	}
	defer func() {
		for _, i := range order {
			m.shards[i].mu.RUnlock()
		}
	}()

	for _, i := range order {
		for k, v := range m.shards[i].m {
			fn(k, v)
		}
	}
}
