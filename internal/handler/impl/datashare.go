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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/model"
)

// DatashareKind is the callback_kind datashare registers under when
// watching a user's workspace directory for publishable files.
const DatashareKind = "datashare"

// Datashare mirrors files published beneath a user's workspace into a
// public output tree, using hard links rather than copies so the mirror
// never drifts out of sync with its source and costs no extra disk
// space. Its required workspace_dir is the source tree to mirror; the
// mirror's own root is given as public_dir in the handler's extra
// config.
type Datashare struct {
	handler.Base
	log       logr.Logger
	publicDir string
	registry  *fswatch.Registry
}

type datashareConfigError struct{ Handler string }

func (e *datashareConfigError) Error() string {
	return fmt.Sprintf("%s handler requires public_dir in its configuration", e.Handler)
}

// NewDatashare constructs a Datashare handler. workspace_dir is
// required as the mirrored source tree; public_dir (extra config) is
// required as the mirror's destination root.
func NewDatashare(log logr.Logger, name string, cfg model.HandlerConfig, registry *fswatch.Registry) (*Datashare, error) {
	base, err := handler.NewBase(name, cfg, handler.RequiredWorkspaceDir)
	if err != nil {
		return nil, err
	}
	publicDir := cfg.Extra["public_dir"]
	if publicDir == "" {
		return nil, &datashareConfigError{Handler: name}
	}
	return &Datashare{Base: base, log: log.WithName(name), publicDir: publicDir, registry: registry}, nil
}

func (d *Datashare) userWorkspaceDir(userName string) string {
	return filepath.Join(d.WorkspaceDir(), userName)
}

func (d *Datashare) mirrorPath(sourcePath string) (string, error) {
	rel, err := filepath.Rel(d.WorkspaceDir(), sourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is not under the mirrored workspace %q", sourcePath, d.WorkspaceDir())
	}
	return filepath.Join(d.publicDir, rel), nil
}

// GetResourceID is not implemented by the datashare adapter.
func (d *Datashare) GetResourceID(resourceFullName string) (string, error) {
	return "", fmt.Errorf("datashare handler does not support resource id lookup for %q", resourceFullName)
}

// UserCreated starts monitoring the user's workspace for files to mirror.
func (d *Datashare) UserCreated(userName string) error {
	_, err := d.registry.Register(d.userWorkspaceDir(userName), true, DatashareKind, d)
	return err
}

// UserDeleted stops monitoring the user's workspace and removes its
// mirrored public tree.
func (d *Datashare) UserDeleted(userName string) error {
	if _, err := d.registry.Unregister(d.userWorkspaceDir(userName), DatashareKind); err != nil {
		return err
	}
	mirrorRoot, err := d.mirrorPath(d.userWorkspaceDir(userName))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(mirrorRoot); err != nil {
		return fmt.Errorf("removing mirrored tree %q: %w", mirrorRoot, err)
	}
	return nil
}

// PermissionCreated is not applicable: the mirror follows filesystem
// events, not permission events.
func (d *Datashare) PermissionCreated(perm model.Permission) error {
	return fmt.Errorf("datashare handler does not support permission_created")
}

// PermissionDeleted is not applicable; see PermissionCreated.
func (d *Datashare) PermissionDeleted(perm model.Permission) error {
	return fmt.Errorf("datashare handler does not support permission_deleted")
}

// OnCreated hard-links a newly created file into the public mirror,
// creating any missing parent directories first. If a stale mirror
// entry already exists at the destination, it is replaced.
func (d *Datashare) OnCreated(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inspecting %q: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}

	dest, err := d.mirrorPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating mirror parent directory for %q: %w", dest, err)
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale mirror entry %q: %w", dest, err)
	}
	if err := os.Link(path, dest); err != nil {
		return fmt.Errorf("hard-linking %q to %q: %w", path, dest, err)
	}
	return nil
}

// OnDeleted removes the corresponding hard link from the public mirror,
// tolerating its absence.
func (d *Datashare) OnDeleted(path string) error {
	dest, err := d.mirrorPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing mirror entry %q: %w", dest, err)
	}
	return nil
}

// OnModified does nothing: since OnCreated's destination is a hard
// link to the same inode, in-place content changes are already visible
// through the mirror and need no action. A rewrite that replaces the
// source file's inode (e.g. write-to-temp-then-rename) arrives as a
// delete+create pair instead, which OnCreated already re-links.
func (d *Datashare) OnModified(path string) error {
	return nil
}

var (
	_ handler.Handler           = (*Datashare)(nil)
	_ handler.FSCallbackHandler = (*Datashare)(nil)
)
