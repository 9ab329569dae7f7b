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

package main

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/config"
	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/handler/impl"
	"github.com/ouranosinc/syncbird/internal/metrics"
	"github.com/ouranosinc/syncbird/internal/syncpoint"
)

// nullStore is a no-op fswatch.Store used wherever a Factory is built
// only for introspection (handlers list/info) and never starts a real
// Monitor, so there is nothing to persist.
type nullStore struct{}

func (nullStore) List() ([]fswatch.PersistedMonitor, error) { return nil, nil }
func (nullStore) Upsert(fswatch.PersistedMonitor) error     { return nil }
func (nullStore) Delete(callback, path string) error        { return nil }

// buildFactory loads configuration from opts.configPath and assembles a
// handler.Factory wired against the given filesystem monitor registry.
// m is threaded through to every adapter that records metrics of its
// own (currently Geoserver's task runner) and may be nil.
func buildFactory(opts *rootOptions, log logr.Logger, fsRegistry *fswatch.Registry, m *metrics.Metrics) (*handler.Factory, *syncpoint.Synchronizer, error) {
	cfg, err := config.Load(log, opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	synchronizer, err := syncpoint.NewSynchronizer(cfg.SyncPoints)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling sync points: %w", err)
	}
	registry := impl.NewRegistry(log, fsRegistry, synchronizer, m)
	return handler.NewFactory(log, registry, cfg.Handlers, cfg.HandlerOrder), synchronizer, nil
}
