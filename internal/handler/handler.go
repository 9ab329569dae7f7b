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

// Package handler defines the component-adapter interface, the factory
// that instantiates active adapters from configuration, and the
// priority-ordered dispatcher that fans events out to them.
package handler

import (
	"fmt"

	"github.com/ouranosinc/syncbird/internal/model"
)

// RequiredParam names one of the base configuration fields a Handler
// implementation may declare as mandatory.
type RequiredParam string

// Base configuration parameters a handler may require.
const (
	RequiredPriority     RequiredParam = "priority"
	RequiredURL          RequiredParam = "url"
	RequiredWorkspaceDir RequiredParam = "workspace_dir"
)

// ConfigError reports that a handler could not be constructed because a
// required configuration parameter was missing.
type ConfigError struct {
	Handler string
	Param   RequiredParam
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s handler requires the missing configuration parameter %q", e.Handler, e.Param)
}

// Handler is the capability set every component adapter implements:
// reacting to user and permission lifecycle events, and resolving a
// resource's identifier on its own component.
type Handler interface {
	// Name returns the handler's configured name, used as its cache key
	// and for introspection.
	Name() string
	// Priority returns the dispatch priority; lower values run first.
	Priority() float64

	GetResourceID(resourceFullName string) (string, error)
	UserCreated(userName string) error
	UserDeleted(userName string) error
	PermissionCreated(perm model.Permission) error
	PermissionDeleted(perm model.Permission) error
}

// FSCallbackHandler is the optional capability implemented by adapters
// that also react to raw filesystem events forwarded by a Monitor.
type FSCallbackHandler interface {
	Handler
	OnCreated(path string) error
	OnDeleted(path string) error
	OnModified(path string) error
}

// Base holds the configuration fields common to every handler
// implementation and enforces the required-parameter invariant at
// construction time.
type Base struct {
	name         string
	priority     float64
	url          string
	workspaceDir string
}

// NewBase validates cfg against required and returns the populated Base,
// or a *ConfigError if a required parameter is absent.
func NewBase(name string, cfg model.HandlerConfig, required ...RequiredParam) (Base, error) {
	b := Base{name: name, priority: cfg.Priority, url: cfg.URL, workspaceDir: cfg.WorkspaceDir}
	for _, param := range required {
		switch param {
		case RequiredURL:
			if b.url == "" {
				return Base{}, &ConfigError{Handler: name, Param: param}
			}
		case RequiredWorkspaceDir:
			if b.workspaceDir == "" {
				return Base{}, &ConfigError{Handler: name, Param: param}
			}
		case RequiredPriority:
			if b.priority == 0 {
				return Base{}, &ConfigError{Handler: name, Param: param}
			}
		}
	}
	return b, nil
}

// Name returns the handler's configured name.
func (b Base) Name() string { return b.name }

// Priority returns the handler's dispatch priority.
func (b Base) Priority() float64 { return b.priority }

// URL returns the handler's configured remote endpoint, if any.
func (b Base) URL() string { return b.url }

// WorkspaceDir returns the handler's configured workspace root, if any.
func (b Base) WorkspaceDir() string { return b.workspaceDir }
