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

package syncpoint

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/ouranosinc/syncbird/internal/config"
	"github.com/ouranosinc/syncbird/internal/metrics"
	"github.com/ouranosinc/syncbird/internal/model"
)

// Synchronizer holds every compiled sync point declared in configuration
// and runs a permission event against each one that involves the
// component the event was observed on.
type Synchronizer struct {
	points  []*SyncPoint
	metrics *metrics.Metrics
}

// NewSynchronizer compiles every configured sync point.
func NewSynchronizer(cfgs []config.SyncPointConfig) (*Synchronizer, error) {
	s := &Synchronizer{}
	for _, cfg := range cfgs {
		sp, err := Compile(cfg)
		if err != nil {
			return nil, fmt.Errorf("compiling sync point %q: %w", cfg.ID, err)
		}
		s.points = append(s.points, sp)
	}
	return s, nil
}

// SetMetrics attaches a Metrics instance the synchronizer records
// computed propagations against. Optional: a Synchronizer with no
// Metrics set simply skips recording.
func (s *Synchronizer) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Propagate runs perm against every sync point that declares
// perm.ComponentName, applying op for each computed target. A sync point
// that does not involve this component is silently skipped, matching the
// per-point resource_key filtering done at compile time.
func (s *Synchronizer) Propagate(perm model.Permission, sourceTree []model.ResourcePathSegment, op PermOperation) error {
	for _, sp := range s.points {
		if !sp.HasComponent(perm.ComponentName) {
			continue
		}
		wrapped := op
		if s.metrics != nil {
			id := sp.ID()
			wrapped = func(targetComponent string, segments []TargetSegment) error {
				s.metrics.SyncPropagationsTotal.Add(context.Background(), 1, otelmetric.WithAttributes(
					attribute.String("sync_point", id),
					attribute.String("target_component", targetComponent),
				))
				return op(targetComponent, segments)
			}
		}
		if err := sp.Sync(perm, sourceTree, wrapped); err != nil {
			return fmt.Errorf("sync point %q: %w", sp.ID(), err)
		}
	}
	return nil
}
