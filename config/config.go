// Copyright 2025 Poiesic Systems
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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/poiesic/flowrun/ai"
	"github.com/poiesic/flowrun/convert"
	"github.com/poiesic/flowrun/flow"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Scheduler modes.
const (
	// ModeFlows scans every flow's candidates on each pass.
	ModeFlows = "flows"
	// ModeQueue drains an explicit task queue on each pass.
	ModeQueue = "queue"
)

// Config is the full flowrun configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Chunking  ChunkConfig     `yaml:"chunking"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retry     RetryConfig     `yaml:"retry"`
	AI        ai.Config       `yaml:"ai"`
}

// StoreConfig selects and locates the record store.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// SchedulerConfig controls the polling loop and the executor.
type SchedulerConfig struct {
	Mode        string        `yaml:"mode"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	PageSize    int           `yaml:"page_size"`
	Concurrency int           `yaml:"concurrency"`
}

// ChunkConfig controls how converted text is split.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IngestConfig controls file ingestion.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// RetryConfig controls retries of AI calls inside handlers.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DriverBadger,
			Path:   "flowrun.db",
		},
		Scheduler: SchedulerConfig{
			Mode:        ModeFlows,
			BaseDelay:   flow.DefaultBaseDelay,
			MaxDelay:    flow.DefaultMaxDelay,
			PageSize:    flow.DefaultPageSize,
			Concurrency: 1,
		},
		Chunking: ChunkConfig{
			Size:    convert.DefaultChunkSize,
			Overlap: convert.DefaultChunkOverlap,
		},
		Ingest: IngestConfig{Workers: 4},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    500 * time.Millisecond,
		},
		AI: *ai.DefaultConfig(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.AI.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadIfExists is Load, except a missing file yields the defaults.
func LoadIfExists(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverBadger, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Store.Path == "" && !c.Store.InMemory {
		return fmt.Errorf("%w: store path is required", ErrInvalidConfig)
	}

	switch c.Scheduler.Mode {
	case ModeFlows, ModeQueue:
	default:
		return fmt.Errorf("%w: unknown scheduler mode %q", ErrInvalidConfig, c.Scheduler.Mode)
	}
	if c.Scheduler.BaseDelay <= 0 || c.Scheduler.MaxDelay < c.Scheduler.BaseDelay {
		return fmt.Errorf("%w: delays must satisfy 0 < base_delay <= max_delay", ErrInvalidConfig)
	}
	if c.Scheduler.PageSize < 0 {
		return fmt.Errorf("%w: page size must not be negative", ErrInvalidConfig)
	}
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	}

	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunk overlap must be smaller than chunk size", ErrInvalidConfig)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("%w: ingest workers must be at least 1", ErrInvalidConfig)
	}
	if c.Retry.Attempts < 1 || c.Retry.Delay < 0 {
		return fmt.Errorf("%w: retry attempts must be at least 1", ErrInvalidConfig)
	}

	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
