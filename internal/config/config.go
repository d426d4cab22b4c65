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

// Package config parses and validates the trainer's command-line surface.
package config

import (
	"flag"
	"fmt"
	"strings"
)

// Config is the fully-parsed, validated CLI surface.
type Config struct {
	Model string // "lr" or "fm"

	Train    string
	Valid    string
	Test     string
	TestPred string
	Load     string
	Save     string

	WLR       float64
	VLR       float64
	WL2       float64
	VL2       float64
	VStddev   float64
	Epoch     int
	BatchSize int
	Factor    int
	TT        int // train_thread_num
	PT        int // parse_thread_num
	Seed      int64
	Debug     bool

	MetricsAddr       string
	ProgressRedisAddr string
	ProgressRedisKey  string
}

// Parse parses args (excluding the program name) into a Config with the
// reference implementation's defaults, then validates it.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("ctrtrain", flag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.Model, "model", "lr", "model type: lr or fm")
	fs.StringVar(&cfg.Train, "train", "", "training data path")
	fs.StringVar(&cfg.Valid, "valid", "", "validation data path (optional)")
	fs.StringVar(&cfg.Test, "test", "", "test data path for batch prediction (optional)")
	fs.StringVar(&cfg.TestPred, "test_pred", "", "output path for test predictions")
	fs.StringVar(&cfg.Load, "load", "", "path to preload a model from (optional)")
	fs.StringVar(&cfg.Save, "save", "", "path to save the trained model to (optional)")
	fs.Float64Var(&cfg.WLR, "w_lr", 0.1, "linear weight learning rate")
	fs.Float64Var(&cfg.VLR, "v_lr", 0.1, "FM embedding learning rate")
	fs.Float64Var(&cfg.WL2, "w_l2", 0, "linear weight L2 penalty")
	fs.Float64Var(&cfg.VL2, "v_l2", 0, "FM embedding L2 penalty")
	fs.Float64Var(&cfg.VStddev, "v_stddev", 0.001, "FM embedding gaussian init stddev")
	fs.IntVar(&cfg.Epoch, "epoch", 10, "number of training epochs")
	fs.IntVar(&cfg.BatchSize, "batch_size", 64, "mini-batch size")
	fs.IntVar(&cfg.Factor, "factor", 4, "FM latent dimension (K)")
	fs.IntVar(&cfg.TT, "tt", 10, "train_thread_num")
	fs.IntVar(&cfg.PT, "pt", 3, "parse_thread_num")
	fs.Int64Var(&cfg.Seed, "seed", -1, "PRNG seed; -1 means unseeded")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	fs.StringVar(&cfg.MetricsAddr, "metrics_addr", "", "optional Prometheus /metrics listen address")
	fs.StringVar(&cfg.ProgressRedisAddr, "progress_redis_addr", "", "optional Redis address to publish per-epoch progress to")
	fs.StringVar(&cfg.ProgressRedisKey, "progress_redis_key", "ctrtrain:progress", "Redis list key progress is published to")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// check mirrors the reference implementation's check_args: the model type
// must be recognized, and a fixed seed is only meaningful with strictly
// single-threaded parsing and training.
func (c *Config) check() error {
	if c.Model != "lr" && c.Model != "fm" {
		return fmt.Errorf("config: model must be \"lr\" or \"fm\", got %q", c.Model)
	}
	if c.Train == "" {
		return fmt.Errorf("config: -train is required")
	}
	if c.Seed != -1 && (c.TT != 1 || c.PT != 1) {
		return fmt.Errorf("config: seed=%d requires tt=1 and pt=1 for determinism, got tt=%d pt=%d", c.Seed, c.TT, c.PT)
	}
	return nil
}

// String renders a padded key/value dump of the configuration, in the
// spirit of the reference implementation's Config::str().
func (c *Config) String() string {
	rows := [][2]string{
		{"model", c.Model},
		{"train", c.Train},
		{"valid", c.Valid},
		{"test", c.Test},
		{"test_pred", c.TestPred},
		{"load", c.Load},
		{"save", c.Save},
		{"w_lr", fmt.Sprintf("%v", c.WLR)},
		{"v_lr", fmt.Sprintf("%v", c.VLR)},
		{"w_l2", fmt.Sprintf("%v", c.WL2)},
		{"v_l2", fmt.Sprintf("%v", c.VL2)},
		{"v_stddev", fmt.Sprintf("%v", c.VStddev)},
		{"epoch", fmt.Sprintf("%d", c.Epoch)},
		{"batch_size", fmt.Sprintf("%d", c.BatchSize)},
		{"factor", fmt.Sprintf("%d", c.Factor)},
		{"tt", fmt.Sprintf("%d", c.TT)},
		{"pt", fmt.Sprintf("%d", c.PT)},
		{"seed", fmt.Sprintf("%d", c.Seed)},
		{"debug", fmt.Sprintf("%v", c.Debug)},
		{"metrics_addr", c.MetricsAddr},
		{"progress_redis_addr", c.ProgressRedisAddr},
		{"progress_redis_key", c.ProgressRedisKey},
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "  %-20s %s\n", r[0]+":", r[1])
	}
	return b.String()
}
