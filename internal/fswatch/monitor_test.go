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
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCallback struct {
	mu       sync.Mutex
	created  []string
	deleted  []string
	modified []string
	err      error
}

func (c *recordingCallback) OnCreated(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, path)
	return c.err
}

func (c *recordingCallback) OnDeleted(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, path)
	return c.err
}

func (c *recordingCallback) OnModified(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modified = append(c.modified, path)
	return c.err
}

func TestMonitor_HandleTranslatesCreateEvent(t *testing.T) {
	cb := &recordingCallback{}
	m := &Monitor{Path: t.TempDir(), log: logr.Discard(), callback: cb}

	m.handle(fsnotify.Event{Name: "/tmp/new-file", Op: fsnotify.Create})

	assert.Equal(t, []string{"/tmp/new-file"}, cb.created)
	assert.Empty(t, cb.deleted)
	assert.Empty(t, cb.modified)
}

func TestMonitor_HandleTranslatesRemoveEvent(t *testing.T) {
	cb := &recordingCallback{}
	m := &Monitor{Path: t.TempDir(), log: logr.Discard(), callback: cb}

	m.handle(fsnotify.Event{Name: "/tmp/gone", Op: fsnotify.Remove})

	assert.Equal(t, []string{"/tmp/gone"}, cb.deleted)
}

func TestMonitor_HandleTranslatesWriteEvent(t *testing.T) {
	cb := &recordingCallback{}
	m := &Monitor{Path: t.TempDir(), log: logr.Discard(), callback: cb}

	m.handle(fsnotify.Event{Name: "/tmp/changed", Op: fsnotify.Write})

	assert.Equal(t, []string{"/tmp/changed"}, cb.modified)
}

func TestMonitor_HandleTranslatesRenameAsDeletion(t *testing.T) {
	cb := &recordingCallback{}
	m := &Monitor{Path: t.TempDir(), log: logr.Discard(), callback: cb}

	m.handle(fsnotify.Event{Name: "/tmp/old-name", Op: fsnotify.Rename})

	assert.Equal(t, []string{"/tmp/old-name"}, cb.deleted)
	assert.Empty(t, cb.created)
}

func TestMonitor_DeliverSwallowsCallbackErrors(t *testing.T) {
	cb := &recordingCallback{err: errors.New("boom")}
	m := &Monitor{Path: t.TempDir(), log: logr.Discard(), callback: cb}

	assert.NotPanics(t, func() {
		m.deliver(cb.OnCreated, "/tmp/whatever")
	})
	assert.Equal(t, []string{"/tmp/whatever"}, cb.created)
}

func TestSubdirectories_WalksNestedTree(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	dirs, err := subdirectories(root)

	require.NoError(t, err)
	assert.Contains(t, dirs, root)
	assert.Contains(t, dirs, filepath.Join(root, "a"))
	assert.Contains(t, dirs, nested)
}

func TestSubdirectories_RejectsMissingRoot(t *testing.T) {
	_, err := subdirectories(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
