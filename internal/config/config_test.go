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

package config

import (
	"strings"
	"testing"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]string{"-train", "data.txt"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Model != "lr" || cfg.Epoch != 10 || cfg.BatchSize != 64 || cfg.Factor != 4 ||
		cfg.TT != 10 || cfg.PT != 3 || cfg.Seed != -1 {
		t.Fatalf("Parse() defaults = %+v", cfg)
	}
}

func TestParse_RejectsUnknownModel(t *testing.T) {
	if _, err := Parse([]string{"-train", "data.txt", "-model", "svm"}); err == nil {
		t.Fatalf("Parse() error = nil, want error for unknown model")
	}
}

func TestParse_RequiresTrainPath(t *testing.T) {
	if _, err := Parse([]string{"-model", "lr"}); err == nil {
		t.Fatalf("Parse() error = nil, want error for missing -train")
	}
}

func TestParse_SeedRequiresSingleThreaded(t *testing.T) {
	if _, err := Parse([]string{"-train", "data.txt", "-seed", "42", "-tt", "4", "-pt", "1"}); err == nil {
		t.Fatalf("Parse() error = nil, want error: seed set with tt=4")
	}
	cfg, err := Parse([]string{"-train", "data.txt", "-seed", "42", "-tt", "1", "-pt", "1"})
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil for tt=pt=1 with a seed", err)
	}
	if cfg.Seed != 42 {
		t.Fatalf("Seed = %d, want 42", cfg.Seed)
	}
}

func TestConfig_StringContainsKeyFields(t *testing.T) {
	cfg, err := Parse([]string{"-train", "data.txt", "-model", "fm"})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	s := cfg.String()
	for _, want := range []string{"model:", "fm", "train:", "data.txt", "batch_size:", "64"} {
		if !strings.Contains(s, want) {
			t.Fatalf("String() = %q, missing %q", s, want)
		}
	}
}
