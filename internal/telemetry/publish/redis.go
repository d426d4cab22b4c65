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

// Package publish optionally reports per-epoch training progress to a Redis
// list for an external dashboard to tail. This is observability only: no
// training state is read back from Redis, and nothing about the SGD loop
// depends on it being reachable, so it never becomes a distributed-training
// coordination channel.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Progress is one epoch's worth of reportable training state.
type Progress struct {
	Epoch          int      `json:"epoch"`
	SamplesTrained int64    `json:"samples_trained"`
	ElapsedSeconds float64  `json:"elapsed_seconds"`
	AUC            *float64 `json:"auc,omitempty"`
	WeightMapSize  int      `json:"weight_map_size"`
}

// Publisher pushes Progress snapshots onto a Redis list. A nil *Publisher is
// a valid no-op, mirroring Metrics' disabled-by-default contract.
type Publisher struct {
	client *redis.Client
	key    string
}

// New returns a Publisher targeting addr/key, or nil if addr is empty
// (progress publishing disabled).
func New(addr, key string) *Publisher {
	if addr == "" {
		return nil
	}
	return &Publisher{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// Publish appends one progress snapshot to the configured list. A nil
// Publisher silently does nothing.
func (p *Publisher) Publish(ctx context.Context, progress Progress) error {
	if p == nil {
		return nil
	}
	b, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("publish: marshal progress: %w", err)
	}
	if err := p.client.RPush(ctx, p.key, b).Err(); err != nil {
		return fmt.Errorf("publish: rpush %s: %w", p.key, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool. A nil Publisher
// silently does nothing.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
