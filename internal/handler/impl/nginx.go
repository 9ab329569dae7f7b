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

// Nginx is currently a placeholder component adapter: it has no reverse
// proxy configuration to reconcile yet, and every event is log-only.
type Nginx struct {
	handler.Base
	log logr.Logger
}

// NewNginx constructs a Nginx handler. It has no required parameters.
func NewNginx(log logr.Logger, name string, cfg model.HandlerConfig) (*Nginx, error) {
	base, err := handler.NewBase(name, cfg)
	if err != nil {
		return nil, err
	}
	return &Nginx{Base: base, log: log.WithName(name)}, nil
}

// GetResourceID is not implemented.
func (n *Nginx) GetResourceID(resourceFullName string) (string, error) {
	return "", fmt.Errorf("nginx handler does not support resource id lookup for %q", resourceFullName)
}

// UserCreated is not yet implemented for this component.
func (n *Nginx) UserCreated(userName string) error {
	n.log.Info("event user_created is not implemented for this handler")
	return nil
}

// UserDeleted is not yet implemented for this component.
func (n *Nginx) UserDeleted(userName string) error {
	n.log.Info("event user_deleted is not implemented for this handler")
	return nil
}

// PermissionCreated is not yet implemented for this component.
func (n *Nginx) PermissionCreated(perm model.Permission) error {
	n.log.Info("event permission_created is not implemented for this handler")
	return nil
}

// PermissionDeleted is not yet implemented for this component.
func (n *Nginx) PermissionDeleted(perm model.Permission) error {
	n.log.Info("event permission_deleted is not implemented for this handler")
	return nil
}

var _ handler.Handler = (*Nginx)(nil)
