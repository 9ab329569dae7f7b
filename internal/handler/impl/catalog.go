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
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/model"
)

// CatalogKind is the stable callback_kind string this handler registers
// itself under when subscribing to filesystem monitors.
const CatalogKind = "catalog"

// Catalog keeps a search index in sync as files are created, removed or
// modified under each user's workspace.
type Catalog struct {
	handler.Base
	log      logr.Logger
	registry *fswatch.Registry
}

// NewCatalog constructs a Catalog handler. url and workspace_dir are
// both required, per required_params in the source handler.
func NewCatalog(log logr.Logger, name string, cfg model.HandlerConfig, registry *fswatch.Registry) (*Catalog, error) {
	base, err := handler.NewBase(name, cfg, handler.RequiredURL, handler.RequiredWorkspaceDir)
	if err != nil {
		return nil, err
	}
	return &Catalog{Base: base, log: log.WithName(name), registry: registry}, nil
}

func (c *Catalog) userWorkspaceDir(userName string) string {
	return filepath.Join(c.WorkspaceDir(), userName)
}

// GetResourceID is not implemented by the catalog adapter.
func (c *Catalog) GetResourceID(resourceFullName string) (string, error) {
	return "", fmt.Errorf("catalog handler does not support resource id lookup for %q", resourceFullName)
}

// UserCreated starts recursively monitoring the user's workspace directory.
func (c *Catalog) UserCreated(userName string) error {
	c.log.Info("starting workspace monitoring for created user", "user", userName)
	_, err := c.registry.Register(c.userWorkspaceDir(userName), true, CatalogKind, c)
	return err
}

// UserDeleted stops monitoring the user's workspace directory.
func (c *Catalog) UserDeleted(userName string) error {
	c.log.Info("stopping workspace monitoring for removed user", "user", userName)
	_, err := c.registry.Unregister(c.userWorkspaceDir(userName), CatalogKind)
	return err
}

// PermissionCreated is not applicable to the catalog adapter: indexing
// reacts to file events, not permission events.
func (c *Catalog) PermissionCreated(perm model.Permission) error {
	return fmt.Errorf("catalog handler does not support permission_created")
}

// PermissionDeleted is not applicable to the catalog adapter; see PermissionCreated.
func (c *Catalog) PermissionDeleted(perm model.Permission) error {
	return fmt.Errorf("catalog handler does not support permission_deleted")
}

// OnCreated indexes a newly created file.
func (c *Catalog) OnCreated(path string) error {
	c.log.Info("file created", "path", path)
	return nil
}

// OnDeleted removes a deleted file from the index.
func (c *Catalog) OnDeleted(path string) error {
	c.log.Info("file deleted", "path", path)
	return nil
}

// OnModified reindexes a modified file.
func (c *Catalog) OnModified(path string) error {
	c.log.Info("file modified", "path", path)
	return nil
}

var (
	_ handler.Handler           = (*Catalog)(nil)
	_ handler.FSCallbackHandler = (*Catalog)(nil)
)
