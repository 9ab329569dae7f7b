/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 Ouranosinc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package taskrunner executes outbound work — calls to remote
// components — off the request path, retrying on retryable failures
// with exponential backoff and jitter.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/ouranosinc/syncbird/internal/metrics"
)

// Policy configures the retry behavior of one Task.
type Policy struct {
	// MaxAttempts caps the number of attempts (including the first).
	// Zero selects DefaultMaxAttempts.
	MaxAttempts int
	// MaxElapsed caps total retry time. Zero selects DefaultMaxElapsed.
	MaxElapsed time.Duration
}

// Default retry policy: 15 attempts, capped at 10 minutes of backoff.
const (
	DefaultMaxAttempts = 15
	DefaultMaxElapsed  = 10 * time.Minute
)

// FileNotFoundPolicy is the override used by tasks that wait for
// companion files to appear on disk: fewer attempts, same backoff cap.
var FileNotFoundPolicy = Policy{MaxAttempts: 8, MaxElapsed: DefaultMaxElapsed}

func (p Policy) orDefault() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = DefaultMaxElapsed
	}
	return p
}

// RetryableError wraps an error to mark it as eligible for retry; any
// other error returned by a Task's function is treated as permanent.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as retryable by the runner.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Task is one unit of outbound work to run through the retry runner.
type Task struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// Runner executes Tasks with exponential-backoff retry.
type Runner struct {
	log     logr.Logger
	metrics *metrics.Metrics
}

// New builds a Runner.
func New(log logr.Logger) *Runner {
	return &Runner{log: log}
}

// SetMetrics attaches a Metrics instance the runner records retry
// attempts against. Optional: a Runner with no Metrics set simply skips
// recording.
func (r *Runner) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Execute runs t to completion, retrying while its Run function returns
// a RetryableError, until the policy's attempt or elapsed-time budget
// is exhausted.
func (r *Runner) Execute(ctx context.Context, t Task) error {
	policy := t.Policy.orDefault()

	bo := backoff.NewExponentialBackOff()

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		if err := t.Run(ctx); err != nil {
			var retryable *RetryableError
			if errors.As(err, &retryable) {
				r.log.Info("retryable task attempt failed", "task", t.Name, "attempt", attempt, "err", retryable.Err)
				if r.metrics != nil {
					r.metrics.TaskRetryAttemptsTotal.Add(ctx, 1, otelmetric.WithAttributes(
						attribute.String("task", t.Name),
					))
				}
				return struct{}{}, retryable.Err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxElapsedTime(policy.MaxElapsed),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
	)
	if err != nil {
		return fmt.Errorf("task %q failed after %d attempt(s): %w", t.Name, attempt, err)
	}
	return nil
}

// Chain runs tasks sequentially; the failure of any link halts the
// chain without running its successors and without rolling back
// already-completed steps, since each step is expected to be idempotent
// at the remote component's granularity.
func (r *Runner) Chain(ctx context.Context, tasks ...Task) error {
	for i, t := range tasks {
		if err := r.Execute(ctx, t); err != nil {
			return fmt.Errorf("chain halted at step %d (%q): %w", i, t.Name, err)
		}
	}
	return nil
}

// AwaitWithDeadline awaits fn, returning its result if it completes
// before deadline elapses, or ok=false if the deadline is hit first —
// callers use this for best-effort probes (e.g. a remote version check)
// that must never block the caller indefinitely.
func AwaitWithDeadline[T any](ctx context.Context, deadline time.Duration, fn func(ctx context.Context) (T, error)) (result T, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := fn(ctx)
		done <- outcome{val, err}
	}()

	select {
	case o := <-done:
		return o.val, true, o.err
	case <-ctx.Done():
		var zero T
		return zero, false, nil
	}
}
