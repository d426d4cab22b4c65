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
	"sync/atomic"

	"ctrtrain/internal/xlog"
)

// progressTracker logs a line every step samples trained, tolerating
// concurrent Add calls from every trainer goroutine without double-logging
// the same threshold.
type progressTracker struct {
	step       int64
	count      atomic.Int64
	lastLogged atomic.Int64
}

func newProgressTracker(step int64) *progressTracker {
	return &progressTracker{step: step}
}

// Add records n more trained samples and returns the running total.
func (p *progressTracker) Add(n int) int64 {
	total := p.count.Add(int64(n))
	if p.step <= 0 {
		return total
	}
	for {
		last := p.lastLogged.Load()
		if total-last < p.step {
			return total
		}
		next := last + p.step
		if p.lastLogged.CompareAndSwap(last, next) {
			xlog.Infof("training progress: %d samples", next)
			return total
		}
	}
}

// Total returns the current running total without recording anything.
func (p *progressTracker) Total() int64 {
	return p.count.Load()
}
