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

package model

import "math"

// HandlerConfig is the per-handler section of the `handlers:` config block.
type HandlerConfig struct {
	Active       bool
	Priority     float64
	URL          string
	WorkspaceDir string
	Extra        map[string]string
}

// DefaultPriority is used when a handler config omits `priority`; it
// sorts last among active handlers.
var DefaultPriority = math.Inf(1)

// Monitor is a (path, recursive, callback_kind) subscription of a handler
// kind to filesystem events under a path.
type Monitor struct {
	Path         string
	Recursive    bool
	CallbackKind string
}

// Key identifies a Monitor uniquely in the persisted store: (callback_kind, path).
func (m Monitor) Key() (callback, path string) {
	return m.CallbackKind, m.Path
}
