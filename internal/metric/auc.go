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

// Package metric computes ROC-AUC over validation predictions.
package metric

import (
	"fmt"
	"sort"
)

// AUC computes the area under the ROC curve via the rank-sum formula: sort
// (pred, label) pairs ascending by pred, assign ranks 1..M in sorted order
// with no tie-averaging, then
//
//	AUC = (sum of ranks of positives - P*(P+1)/2) / (P * (M-P))
//
// where P is the number of positive labels. len(yPred) != len(yTrue) is a
// precondition violation and panics rather than returning an error. When
// every label is positive or every label is negative the division by zero
// is not guarded: the numerator is then also zero, so the result is float64
// NaN, matching the reference implementation's undefined-but-not-unsafe
// behavior at that boundary.
func AUC(yPred []float32, yTrue []uint32) float64 {
	if len(yPred) != len(yTrue) {
		panic(fmt.Sprintf("metric: AUC: len(yPred)=%d != len(yTrue)=%d", len(yPred), len(yTrue)))
	}

	m := len(yPred)
	idx := make([]int, m)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yPred[idx[a]] < yPred[idx[b]]
	})

	var rankSumPos float64
	var positives int
	for rank, i := range idx {
		if yTrue[i] == 1 {
			rankSumPos += float64(rank + 1)
			positives++
		}
	}
	negatives := m - positives

	p := float64(positives)
	return (rankSumPos - p*(p+1)/2) / (p * float64(negatives))
}
