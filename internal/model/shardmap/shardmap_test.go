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

package shardmap

import (
	"sync"
	"testing"
)

func TestMap_InsertFind(t *testing.T) {
	m := New[float32](8)

	if ok := m.Insert(42, 1.5); !ok {
		t.Fatalf("Insert() on a fresh key = false, want true")
	}
	if ok := m.Insert(42, 2.5); ok {
		t.Fatalf("Insert() on an existing key = true, want false")
	}
	v, ok := m.Find(42)
	if !ok || v != 1.5 {
		t.Fatalf("Find(42) = (%v, %v), want (1.5, true)", v, ok)
	}
	if _, ok := m.Find(7); ok {
		t.Fatalf("Find() on an absent key = true, want false")
	}
}

func TestMap_InsertOrAssign(t *testing.T) {
	m := New[float32](8)
	m.InsertOrAssign(1, 1.0)
	m.InsertOrAssign(1, 9.0)

	v, ok := m.Find(1)
	if !ok || v != 9.0 {
		t.Fatalf("Find(1) = (%v, %v), want (9.0, true)", v, ok)
	}
}

func TestMap_Size(t *testing.T) {
	m := New[float32](4)
	for i := uint32(0); i < 100; i++ {
		m.InsertOrAssign(i, float32(i))
	}
	if got := m.Size(); got != 100 {
		t.Fatalf("Size() = %d, want 100", got)
	}
}

func TestMap_LockedScanVisitsEveryEntry(t *testing.T) {
	m := New[float32](4)
	want := map[uint32]float32{}
	for i := uint32(0); i < 50; i++ {
		m.InsertOrAssign(i, float32(i)*2)
		want[i] = float32(i) * 2
	}

	got := map[uint32]float32{}
	m.LockedScan(func(k uint32, v float32) { got[k] = v })

	if len(got) != len(want) {
		t.Fatalf("LockedScan visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("entry %d = %v, want %v", k, got[k], v)
		}
	}
}

// TestMap_HashBalanceUniform checks that rendezvous hashing spreads a large
// key population roughly evenly across shards.
func TestMap_HashBalanceUniform(t *testing.T) {
	const numShards = 16
	const numKeys = 100_000

	m := New[int](numShards)
	counts := make(map[*shard[int]]int)
	var mu sync.Mutex
	for i := uint32(0); i < numKeys; i++ {
		s := m.shardFor(i)
		mu.Lock()
		counts[s]++
		mu.Unlock()
	}

	if len(counts) != numShards {
		t.Fatalf("keys landed on %d distinct shards, want %d", len(counts), numShards)
	}

	want := numKeys / numShards
	for s, c := range counts {
		dev := float64(c-want) / float64(want)
		if dev < -0.15 || dev > 0.15 {
			t.Fatalf("shard %p got %d keys, want ~%d (deviation %.2f)", s, c, want, dev)
		}
	}
}

// TestMap_ConcurrentAccess exercises Insert/InsertOrAssign/Find from many
// real goroutines over a shared key space rather than a purely sequential
// unit test.
func TestMap_ConcurrentAccess(t *testing.T) {
	const goroutines = 8
	const perG = 5000
	m := New[int32](16)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				key := uint32(i % 500)
				m.InsertOrAssign(key, int32(g))
				m.Find(key)
			}
		}(g)
	}
	wg.Wait()

	if got := m.Size(); got != 500 {
		t.Fatalf("Size() = %d, want 500", got)
	}
}
