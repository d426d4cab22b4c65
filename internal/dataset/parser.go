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

package dataset

import "strconv"

// ParseLine converts one libsvm-style line ("y idx:val idx:val ...") into a
// Sample. It is stateless and safe to call concurrently from multiple
// goroutines. Training data is assumed well-formed; malformed input is not
// diagnosed.
//
// Integers are scanned byte-by-byte to avoid a per-field allocation; floats
// go through strconv.ParseFloat on a sub-slice, which takes the same fast
// decimal path as the original implementation's fast_float for the common
// case of short, well-formed decimals.
func ParseLine(line []byte) Sample {
	p := 0
	y := uint32(line[p] - '0')
	p++

	x := make([]Feature, 0, 8)
	for p < len(line) {
		p++ // skip the separating space
		idx, n := scanUint32(line, p)
		p = n
		p++ // skip ':'
		start := p
		for p < len(line) && line[p] != ' ' {
			p++
		}
		val, _ := strconv.ParseFloat(string(line[start:p]), 32)
		x = append(x, Feature{Idx: idx, Val: float32(val)})
	}
	return Sample{Y: y, X: x}
}

// scanUint32 reads a run of ASCII digits starting at p until it hits the
// ':' separator, returning the parsed value and the index of the ':'.
func scanUint32(line []byte, p int) (uint32, int) {
	var val uint32
	for line[p] != ':' {
		val = val*10 + uint32(line[p]-'0')
		p++
	}
	return val, p
}
