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

package fswatch

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/metrics"
)

// PersistedMonitor is the durable representation of a Monitor, as read
// from and written to the Store.
type PersistedMonitor struct {
	Callback  string
	Path      string
	Recursive bool
}

// Store persists Monitor records; implemented by internal/store.
type Store interface {
	List() ([]PersistedMonitor, error)
	Upsert(m PersistedMonitor) error
	Delete(callback, path string) error
}

// CallbackResolver resolves a persisted callback_kind string back into a
// live Callback instance, used when bootstrapping monitors from the
// store at startup.
type CallbackResolver func(kind string) (Callback, error)

// Registry is the process-wide table of active Monitors, keyed by path
// then callback kind. It is a plain dependency-injected value: each
// test constructs its own Registry rather than reaching for a
// process-global singleton.
type Registry struct {
	log   logr.Logger
	store Store

	mu       sync.Mutex
	monitors map[string]map[string]*Monitor // path -> callback_kind -> Monitor

	metrics *metrics.Metrics
}

// NewRegistry builds an empty Registry backed by store.
func NewRegistry(log logr.Logger, store Store) *Registry {
	return &Registry{log: log, store: store, monitors: map[string]map[string]*Monitor{}}
}

// SetMetrics attaches a Metrics instance the registry records the active
// monitor count against. Optional: a Registry with no Metrics set simply
// skips recording.
func (r *Registry) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Bootstrap loads every persisted Monitor and starts it. A path that no
// longer exists on disk is logged and evicted from the store rather
// than failing startup.
func (r *Registry) Bootstrap(resolve CallbackResolver) error {
	persisted, err := r.store.List()
	if err != nil {
		return fmt.Errorf("loading persisted monitors: %w", err)
	}
	for _, p := range persisted {
		if _, err := os.Stat(p.Path); err != nil {
			r.log.Info("evicting stale monitor record: path no longer exists", "path", p.Path, "callback", p.Callback)
			if delErr := r.store.Delete(p.Callback, p.Path); delErr != nil {
				r.log.Error(delErr, "failed to evict stale monitor record", "path", p.Path, "callback", p.Callback)
			}
			continue
		}
		callback, err := resolve(p.Callback)
		if err != nil {
			r.log.Error(err, "failed to resolve monitor callback", "callback", p.Callback)
			continue
		}
		if err := r.start(p.Path, p.Recursive, p.Callback, callback, false); err != nil {
			r.log.Error(err, "failed to start persisted monitor", "path", p.Path, "callback", p.Callback)
		}
	}
	return nil
}

// Register creates a Monitor for (path, callback_kind), or merges into
// an existing one by taking recursive = existing.recursive OR new.recursive.
// The merged or newly-created Monitor is (re)persisted.
func (r *Registry) Register(path string, recursive bool, kind string, callback Callback) (*Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byKind, ok := r.monitors[path]; ok {
		if existing, ok := byKind[kind]; ok {
			if recursive && !existing.Recursive {
				if err := r.restartLocked(existing, true); err != nil {
					return nil, err
				}
			}
			return existing, nil
		}
	}

	m, err := r.startLocked(path, recursive, kind, callback, true)
	if err == nil {
		r.recordMonitorDelta(1)
	}
	return m, err
}

func (r *Registry) start(path string, recursive bool, kind string, callback Callback, persist bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.startLocked(path, recursive, kind, callback, persist)
	if err == nil {
		r.recordMonitorDelta(1)
	}
	return err
}

func (r *Registry) recordMonitorDelta(delta int64) {
	if r.metrics == nil {
		return
	}
	r.metrics.ActiveMonitorsGauge.Add(context.Background(), delta)
}

func (r *Registry) startLocked(path string, recursive bool, kind string, callback Callback, persist bool) (*Monitor, error) {
	m, err := newMonitor(r.log, path, recursive, kind, callback)
	if err != nil {
		return nil, err
	}
	if err := m.start(); err != nil {
		return nil, err
	}
	if r.monitors[path] == nil {
		r.monitors[path] = map[string]*Monitor{}
	}
	r.monitors[path][kind] = m
	if persist {
		if err := r.store.Upsert(PersistedMonitor{Callback: kind, Path: path, Recursive: recursive}); err != nil {
			return nil, fmt.Errorf("persisting monitor for %q: %w", path, err)
		}
	}
	return m, nil
}

func (r *Registry) restartLocked(existing *Monitor, recursive bool) error {
	callback := existing.callback
	kind := existing.CallbackKind
	path := existing.Path
	if err := existing.stop(); err != nil {
		return fmt.Errorf("stopping monitor for %q before merge: %w", path, err)
	}
	replacement, err := r.startLocked(path, recursive, kind, callback, true)
	if err != nil {
		return err
	}
	r.monitors[path][kind] = replacement
	return nil
}

// Unregister stops and removes the Monitor for (path, callback_kind), if
// present. Returns true if a Monitor was found and stopped.
func (r *Registry) Unregister(path, kind string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKind, ok := r.monitors[path]
	if !ok {
		return false, nil
	}
	m, ok := byKind[kind]
	if !ok {
		return false, nil
	}
	if err := m.stop(); err != nil {
		return false, fmt.Errorf("stopping monitor for %q: %w", path, err)
	}
	delete(byKind, kind)
	if len(byKind) == 0 {
		delete(r.monitors, path)
	}
	if err := r.store.Delete(kind, path); err != nil {
		return false, fmt.Errorf("removing persisted monitor for %q: %w", path, err)
	}
	r.recordMonitorDelta(-1)
	return true, nil
}

// Get returns the Monitor for (path, callback_kind), if one is active.
func (r *Registry) Get(path, kind string) (*Monitor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byKind, ok := r.monitors[path]
	if !ok {
		return nil, false
	}
	m, ok := byKind[kind]
	return m, ok
}
