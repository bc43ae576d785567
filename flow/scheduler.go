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


package flow

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

const (
	DefaultBaseDelay = time.Second
	DefaultMaxDelay  = time.Minute
)

// Runner performs one pass of work. Executor is the field-presence
// implementation; the status queue provides another.
type Runner interface {
	RunOnce(ctx context.Context) (Results, error)
	Stop()
	Stopped() bool
}

// Sleeper waits for d and reports whether the wait completed. It returns
// false when it was interrupted.
type Sleeper func(ctx context.Context, d time.Duration) bool

// Scheduler drives repeated passes of a Runner.
//
// After a pass that processed at least one record the delay resets and the
// scheduler sleeps for the base delay. After a pass that processed nothing it
// sleeps for the current delay and doubles it, up to the maximum. Stop is honoured before sleeping, during the sleep
// and after waking; a pass in progress returns at its own check points.
type Scheduler struct {
	runner    Runner
	baseDelay time.Duration
	maxDelay  time.Duration
	sleeper   Sleeper
	logger    *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithDelays sets the base and maximum idle delay.
// Defaults are DefaultBaseDelay and DefaultMaxDelay.
func WithDelays(base, max time.Duration) SchedulerOption {
	return func(s *Scheduler) error {
		if base <= 0 || max < base {
			return ErrInvalidDelay
		}
		s.baseDelay = base
		s.maxDelay = max
		return nil
	}
}

// WithSchedulerLogger sets a custom logger.
// Default is slog.Default().
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithSleeper replaces the idle wait. A custom sleeper is not interrupted by
// Stop; it is meant for tests that record delays instead of waiting.
func WithSleeper(sleeper Sleeper) SchedulerOption {
	return func(s *Scheduler) error {
		if sleeper != nil {
			s.sleeper = sleeper
		}
		return nil
	}
}

// NewScheduler creates a scheduler for runner.
func NewScheduler(runner Runner, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	if v := reflect.ValueOf(runner); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, ErrRunnerRequired
	}

	s := &Scheduler{
		runner:    runner,
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
		logger:    slog.Default(),
		stopCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.sleeper == nil {
		s.sleeper = func(ctx context.Context, d time.Duration) bool {
			return sleep(ctx, d, s.stopCh)
		}
	}
	s.logger = s.logger.With("component", "flow-scheduler")
	return s, nil
}

// Stop ends Run at its next check point and interrupts an idle sleep.
// Safe to call from any goroutine, more than once, and before Run.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.runner.Stop()
		close(s.stopCh)
	})
}

func (s *Scheduler) stopping(ctx context.Context) bool {
	return s.runner.Stopped() || ctx.Err() != nil
}

// Run loops passes until Stop is called or ctx is done. It returns
// nil after Stop and ctx.Err() after cancellation. Errors from individual
// passes are logged and do not end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	delay := newBackoff(s.baseDelay, s.maxDelay)
	s.logger.Info("scheduler started", "baseDelay", s.baseDelay, "maxDelay", s.maxDelay)
	defer s.logger.Info("scheduler stopped")

	for {
		if s.stopping(ctx) {
			return ctx.Err()
		}

		results, err := s.runner.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Warn("pass finished with errors", "error", err)
		}

		if s.stopping(ctx) {
			return ctx.Err()
		}

		var d time.Duration
		if total := results.Total(); total > 0 {
			delay.Reset()
			d = delay.Peek()
			s.logger.Debug("pass processed records", "total", total, "results", results, "delay", d)
		} else {
			d = delay.Next()
			s.logger.Debug("idle pass, backing off", "delay", d)
		}
		if !s.sleeper(ctx, d) {
			return ctx.Err()
		}
	}
}
