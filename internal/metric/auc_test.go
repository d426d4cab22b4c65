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

package metric

import (
	"math"
	"testing"
)

func TestAUC_WorkedExample(t *testing.T) {
	yPred := []float32{0.1, 0.4, 0.35, 0.8}
	yTrue := []uint32{0, 0, 1, 1}

	got := AUC(yPred, yTrue)
	if math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("AUC() = %v, want 0.75", got)
	}
}

func TestAUC_PerfectRankingIsOne(t *testing.T) {
	yPred := []float32{0.1, 0.2, 0.8, 0.9}
	yTrue := []uint32{0, 0, 1, 1}

	if got := AUC(yPred, yTrue); got != 1 {
		t.Fatalf("AUC() = %v, want 1", got)
	}
}

func TestAUC_WorstRankingIsZero(t *testing.T) {
	yPred := []float32{0.9, 0.8, 0.2, 0.1}
	yTrue := []uint32{0, 0, 1, 1}

	if got := AUC(yPred, yTrue); got != 0 {
		t.Fatalf("AUC() = %v, want 0", got)
	}
}

func TestAUC_Bounds(t *testing.T) {
	yPred := []float32{0.3, 0.9, 0.1, 0.95, 0.2, 0.4, 0.6}
	yTrue := []uint32{0, 1, 0, 1, 1, 0, 1}

	got := AUC(yPred, yTrue)
	if got < 0 || got > 1 {
		t.Fatalf("AUC() = %v, out of [0,1]", got)
	}
}

func TestAUC_ComplementSymmetry(t *testing.T) {
	yPred := []float32{0.3, 0.9, 0.1, 0.95, 0.2, 0.4}
	yTrue := []uint32{0, 1, 0, 1, 0, 1}
	flipped := make([]uint32, len(yTrue))
	for i, y := range yTrue {
		flipped[i] = 1 - y
	}

	auc := AUC(yPred, yTrue)
	aucFlipped := AUC(yPred, flipped)
	if math.Abs((auc+aucFlipped)-1) > 1e-9 {
		t.Fatalf("AUC + AUC(flipped labels) = %v, want 1", auc+aucFlipped)
	}
}

func TestAUC_LengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("AUC() did not panic on length mismatch")
		}
	}()
	AUC([]float32{0.1, 0.2}, []uint32{1})
}

// TestAUC_AllSameLabelIsUndefinedNotFatal exercises the division-by-zero
// boundary left undefined by design: it must not panic, and with either side
// empty the numerator is zero too, so the float64 result is NaN (0/0).
func TestAUC_AllSameLabelIsUndefinedNotFatal(t *testing.T) {
	allPos := AUC([]float32{0.1, 0.2, 0.3}, []uint32{1, 1, 1})
	if !math.IsNaN(allPos) {
		t.Fatalf("AUC() with 0 negatives = %v, want NaN (0/0)", allPos)
	}
	allNeg := AUC([]float32{0.1, 0.2, 0.3}, []uint32{0, 0, 0})
	if !math.IsNaN(allNeg) {
		t.Fatalf("AUC() with 0 positives = %v, want NaN (0/0)", allNeg)
	}
}
