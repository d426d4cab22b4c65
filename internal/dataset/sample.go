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

// Package dataset reads and parses libsvm-style training records.
package dataset

import (
	"strconv"
	"strings"
)

// Feature is one (index, value) pair in a sparse sample vector.
type Feature struct {
	Idx uint32
	Val float32
}

// Sample is a single training record: a binary label plus a sparse feature
// vector, preserved in input order. Duplicate indices are not de-duplicated;
// callers must not assume ascending order.
type Sample struct {
	Y uint32
	X []Feature
}

// String renders the sample back into libsvm-style text, mainly for debug
// logging.
func (s Sample) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(s.Y), 10))
	for _, f := range s.X {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(f.Idx), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(float64(f.Val), 'g', -1, 32))
	}
	return b.String()
}
