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

package impl

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/model"
)

// Thredds is a placeholder component adapter: the data service has no
// reconciliation logic of its own yet, so every operation is unsupported.
type Thredds struct {
	handler.Base
	log logr.Logger
}

// NewThredds constructs a Thredds handler. It has no required parameters.
func NewThredds(log logr.Logger, name string, cfg model.HandlerConfig) (*Thredds, error) {
	base, err := handler.NewBase(name, cfg)
	if err != nil {
		return nil, err
	}
	return &Thredds{Base: base, log: log.WithName(name)}, nil
}

// GetResourceID is not implemented.
func (t *Thredds) GetResourceID(resourceFullName string) (string, error) {
	return "", fmt.Errorf("thredds handler does not support resource id lookup for %q", resourceFullName)
}

// UserCreated is not implemented.
func (t *Thredds) UserCreated(userName string) error {
	return fmt.Errorf("thredds handler does not support user_created")
}

// UserDeleted is not implemented.
func (t *Thredds) UserDeleted(userName string) error {
	return fmt.Errorf("thredds handler does not support user_deleted")
}

// PermissionCreated is not implemented.
func (t *Thredds) PermissionCreated(perm model.Permission) error {
	return fmt.Errorf("thredds handler does not support permission_created")
}

// PermissionDeleted is not implemented.
func (t *Thredds) PermissionDeleted(perm model.Permission) error {
	return fmt.Errorf("thredds handler does not support permission_deleted")
}

var _ handler.Handler = (*Thredds)(nil)
