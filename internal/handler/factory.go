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
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/model"
)

// Constructor builds one Handler implementation from its name and
// configuration. Registered constructors form the closed set of
// recognized handler kinds; there is no dynamic/reflective lookup.
type Constructor func(name string, cfg model.HandlerConfig) (Handler, error)

// Registry is the table of recognized handler kinds, mapping a kind
// name (as it appears under the `handlers:` config section) to its
// Constructor.
type Registry map[string]Constructor

// Factory instantiates and caches Handler instances from configuration.
// Unlike a language-level singleton, a Factory is an explicit,
// dependency-injected value: tests construct a fresh one per case.
type Factory struct {
	log      logr.Logger
	registry Registry
	configs  map[string]model.HandlerConfig
	// order records handler names in configuration declaration order;
	// ActiveHandlers uses it to break priority ties deterministically.
	order []string

	mu       sync.Mutex
	handlers map[string]Handler
}

// NewFactory builds a Factory bound to the given handler configuration,
// declaration order and constructor registry. Handlers are instantiated
// lazily on first lookup; see Get and ActiveHandlers.
func NewFactory(log logr.Logger, registry Registry, configs map[string]model.HandlerConfig, order []string) *Factory {
	return &Factory{
		log:      log,
		registry: registry,
		configs:  configs,
		order:    order,
		handlers: map[string]Handler{},
	}
}

// Get returns the cached Handler for name, constructing it on first
// access. Returns (nil, nil) if the name is unconfigured, inactive, or
// not a recognized kind — mirroring the "absent means skip" semantics
// used throughout dispatch. A non-nil error indicates the handler is
// configured active but failed to construct.
func (f *Factory) Get(name string) (Handler, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.handlers[name]; ok {
		return h, nil
	}

	cfg, ok := f.configs[name]
	if !ok || !cfg.Active {
		f.handlers[name] = nil
		return nil, nil
	}
	ctor, ok := f.registry[name]
	if !ok {
		f.log.Info("configured handler is not a recognized kind", "handler", name)
		f.handlers[name] = nil
		return nil, nil
	}

	h, err := ctor(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("constructing handler %q: %w", name, err)
	}
	f.handlers[name] = h
	return h, nil
}

// ActiveHandlers returns every configured-active, successfully
// constructed handler, sorted ascending by priority with ties broken by
// the order their names were declared in configs.
func (f *Factory) ActiveHandlers() ([]Handler, error) {
	var found []Handler
	for _, name := range f.order {
		h, err := f.Get(name)
		if err != nil {
			return nil, err
		}
		if h != nil {
			found = append(found, h)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Priority() < found[j].Priority()
	})
	return found, nil
}
