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

import "testing"

func TestParseLine_WorkedExample(t *testing.T) {
	s := ParseLine([]byte("1 13:0.5 27:-1.25"))

	want := Sample{Y: 1, X: []Feature{{Idx: 13, Val: 0.5}, {Idx: 27, Val: -1.25}}}
	if s.Y != want.Y || len(s.X) != len(want.X) {
		t.Fatalf("ParseLine() = %+v, want %+v", s, want)
	}
	for i := range want.X {
		if s.X[i] != want.X[i] {
			t.Fatalf("ParseLine() feature[%d] = %+v, want %+v", i, s.X[i], want.X[i])
		}
	}
}

func TestParseLine_SingleFeature(t *testing.T) {
	s := ParseLine([]byte("0 1:1.0"))
	if s.Y != 0 || len(s.X) != 1 || s.X[0].Idx != 1 || s.X[0].Val != 1.0 {
		t.Fatalf("ParseLine() = %+v", s)
	}
}

func TestParseLine_NoFeatures(t *testing.T) {
	s := ParseLine([]byte("1"))
	if s.Y != 1 || len(s.X) != 0 {
		t.Fatalf("ParseLine() = %+v, want y=1 with no features", s)
	}
}

func TestParseLine_DuplicateIndicesPreserved(t *testing.T) {
	s := ParseLine([]byte("1 5:1.0 5:2.0"))
	if len(s.X) != 2 {
		t.Fatalf("ParseLine() dropped a duplicate feature id, got %+v", s.X)
	}
	if s.X[0].Idx != 5 || s.X[1].Idx != 5 {
		t.Fatalf("ParseLine() = %+v, want both entries keyed on idx 5", s.X)
	}
}
