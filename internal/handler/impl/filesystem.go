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

// Package impl holds the concrete component adapters: workspace
// filesystem, authoritative permission mirror, map-server publisher,
// catalog indexer, reverse proxy, data service, and the hard-linked
// public datashare mirror.
package impl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/model"
)

// notebooksDirName is the fixed subdirectory of a user workspace that
// is symlinked to that user's notebook-service data directory.
const notebooksDirName = "notebooks"

// FileSystem keeps each user's on-disk workspace directory structure in
// sync with the platform: a workspace directory per user, containing a
// symlink to that user's notebook-service data directory.
type FileSystem struct {
	handler.Base
	log                 logr.Logger
	notebookUserDataDir string
}

// FileSystemConfig carries FileSystem's component-specific settings on
// top of the shared handler.Base fields.
type FileSystemConfig struct {
	model.HandlerConfig
	NotebookUserDataDir string
}

// NewFileSystem constructs a FileSystem handler. workspace_dir is
// required, per required_params in the source handler.
func NewFileSystem(log logr.Logger, name string, cfg FileSystemConfig) (*FileSystem, error) {
	base, err := handler.NewBase(name, cfg.HandlerConfig, handler.RequiredWorkspaceDir)
	if err != nil {
		return nil, err
	}
	return &FileSystem{Base: base, log: log.WithName(name), notebookUserDataDir: cfg.NotebookUserDataDir}, nil
}

func (f *FileSystem) userWorkspaceDir(userName string) string {
	return filepath.Join(f.WorkspaceDir(), userName)
}

func (f *FileSystem) notebookUserDir(userName string) string {
	return filepath.Join(f.notebookUserDataDir, userName)
}

// GetResourceID is not implemented by the filesystem adapter: it has no
// notion of component-local resource identifiers.
func (f *FileSystem) GetResourceID(resourceFullName string) (string, error) {
	return "", fmt.Errorf("filesystem handler does not support resource id lookup for %q", resourceFullName)
}

// UserCreated ensures the user's workspace directory exists with mode
// 0755 and a notebooks/ symlink pointing at the canonical source,
// updating the symlink if it points elsewhere. Idempotent: re-invoking
// on an existing, correctly-linked workspace is a no-op.
func (f *FileSystem) UserCreated(userName string) error {
	workspaceDir := f.userWorkspaceDir(userName)
	if err := os.Mkdir(workspaceDir, 0o755); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("creating workspace directory %q: %w", workspaceDir, err)
		}
		f.log.Info("user workspace directory already exists, skipping creation", "path", workspaceDir)
	}
	if err := os.Chmod(workspaceDir, 0o755); err != nil {
		return fmt.Errorf("chmod workspace directory %q: %w", workspaceDir, err)
	}

	symlinkPath := filepath.Join(workspaceDir, notebooksDirName)
	wantTarget := f.notebookUserDir(userName)

	info, lstatErr := os.Lstat(symlinkPath)
	switch {
	case lstatErr != nil && errors.Is(lstatErr, os.ErrNotExist):
		return os.Symlink(wantTarget, symlinkPath)
	case lstatErr != nil:
		return fmt.Errorf("inspecting %q: %w", symlinkPath, lstatErr)
	case info.Mode()&os.ModeSymlink == 0:
		return fmt.Errorf("failed to create symlinked notebook directory in user %q's workspace: "+
			"a non-symlink directory already exists at %q", userName, symlinkPath)
	}

	currentTarget, err := os.Readlink(symlinkPath)
	if err != nil {
		return fmt.Errorf("reading existing symlink %q: %w", symlinkPath, err)
	}
	if currentTarget == wantTarget {
		return nil
	}
	if err := os.Remove(symlinkPath); err != nil {
		return fmt.Errorf("removing stale symlink %q: %w", symlinkPath, err)
	}
	return os.Symlink(wantTarget, symlinkPath)
}

// UserDeleted removes the user's workspace directory tree, tolerating
// its absence.
func (f *FileSystem) UserDeleted(userName string) error {
	workspaceDir := f.userWorkspaceDir(userName)
	if err := os.RemoveAll(workspaceDir); err != nil {
		return fmt.Errorf("removing workspace directory %q: %w", workspaceDir, err)
	}
	return nil
}

// PermissionCreated is not applicable to the filesystem adapter: file
// permissions are derived from directory structure, not mirrored
// permission events.
func (f *FileSystem) PermissionCreated(perm model.Permission) error {
	return fmt.Errorf("filesystem handler does not support permission_created")
}

// PermissionDeleted is not applicable to the filesystem adapter; see PermissionCreated.
func (f *FileSystem) PermissionDeleted(perm model.Permission) error {
	return fmt.Errorf("filesystem handler does not support permission_deleted")
}

var _ handler.Handler = (*FileSystem)(nil)
