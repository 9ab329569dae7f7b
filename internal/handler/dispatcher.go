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

package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ouranosinc/syncbird/internal/metrics"
	"github.com/ouranosinc/syncbird/internal/model"
)

// AggregateError collects the per-handler failures from one dispatch
// round. A dispatch never aborts early: every active handler is
// attempted regardless of earlier failures.
type AggregateError struct {
	Failures []HandlerFailure
}

// HandlerFailure names the handler that failed and the error it returned.
type HandlerFailure struct {
	Handler string
	Err     error
}

func (e *AggregateError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Handler, f.Err)
	}
	return fmt.Sprintf("%d handler(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Dispatcher fans events out to every active handler in ascending
// priority order, aggregating failures without short-circuiting.
type Dispatcher struct {
	log     logr.Logger
	factory *Factory
	metrics *metrics.Metrics
}

// NewDispatcher builds a Dispatcher bound to factory.
func NewDispatcher(log logr.Logger, factory *Factory) *Dispatcher {
	return &Dispatcher{log: log, factory: factory}
}

// SetMetrics attaches a Metrics instance the dispatcher records
// per-handler dispatch outcomes against. Optional: a Dispatcher with no
// Metrics set simply skips recording.
func (d *Dispatcher) SetMetrics(m *metrics.Metrics) {
	d.metrics = m
}

// run invokes call against every active handler in priority order,
// collecting failures into an *AggregateError. Returns nil if every
// handler succeeded (including the case of zero active handlers).
func (d *Dispatcher) run(event string, call func(Handler) error) error {
	handlers, err := d.factory.ActiveHandlers()
	if err != nil {
		return fmt.Errorf("loading active handlers: %w", err)
	}

	var agg AggregateError
	for _, h := range handlers {
		if err := call(h); err != nil {
			d.log.Error(err, "handler failed", "event", event, "handler", h.Name())
			agg.Failures = append(agg.Failures, HandlerFailure{Handler: h.Name(), Err: err})
			d.recordOutcome(event, h.Name(), "failure")
		} else {
			d.recordOutcome(event, h.Name(), "success")
		}
	}
	if len(agg.Failures) > 0 {
		return &agg
	}
	return nil
}

func (d *Dispatcher) recordOutcome(event, handlerName, result string) {
	if d.metrics == nil {
		return
	}
	d.metrics.DispatchOutcomesTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("handler", handlerName),
		attribute.String("result", result),
	))
}

// UserCreated dispatches a user-creation event to every active handler.
func (d *Dispatcher) UserCreated(userName string) error {
	return d.run("user_created", func(h Handler) error { return h.UserCreated(userName) })
}

// UserDeleted dispatches a user-deletion event to every active handler.
func (d *Dispatcher) UserDeleted(userName string) error {
	return d.run("user_deleted", func(h Handler) error { return h.UserDeleted(userName) })
}

// PermissionCreated dispatches a permission-creation event to every active handler.
func (d *Dispatcher) PermissionCreated(perm model.Permission) error {
	return d.run("permission_created", func(h Handler) error { return h.PermissionCreated(perm) })
}

// PermissionDeleted dispatches a permission-deletion event to every active handler.
func (d *Dispatcher) PermissionDeleted(perm model.Permission) error {
	return d.run("permission_deleted", func(h Handler) error { return h.PermissionDeleted(perm) })
}
