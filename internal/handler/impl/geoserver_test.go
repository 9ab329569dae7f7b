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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/model"
)

func newGeoserver(t *testing.T, serverURL, workspaceDir string) *Geoserver {
	t.Helper()
	registry := fswatch.NewRegistry(logr.Discard(), newMemStore())
	g, err := NewGeoserver(logr.Discard(), "geoserver", model.HandlerConfig{
		URL: serverURL, WorkspaceDir: workspaceDir,
		Extra: map[string]string{"admin_user": "admin", "admin_password": "geoserver"},
	}, registry, nil)
	require.NoError(t, err)
	return g
}

func TestNewGeoserver_MissingCredentialsIsRejected(t *testing.T) {
	registry := fswatch.NewRegistry(logr.Discard(), newMemStore())
	_, err := NewGeoserver(logr.Discard(), "geoserver", model.HandlerConfig{
		URL: "http://geoserver.example", WorkspaceDir: t.TempDir(),
	}, registry, nil)
	assert.Error(t, err)
}

func TestGeoserver_UserCreatedProvisionsDirectoryAndMonitor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	workspaceDir := t.TempDir()
	g := newGeoserver(t, server.URL, workspaceDir)

	require.NoError(t, g.UserCreated("alice"))

	info, err := os.Stat(g.shapefileFolderDir("alice"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, ok := g.registry.Get(g.shapefileFolderDir("alice"), GeoserverKind)
	assert.True(t, ok)
}

func TestGeoserver_UserDeletedUnregistersMonitor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	workspaceDir := t.TempDir()
	g := newGeoserver(t, server.URL, workspaceDir)

	require.NoError(t, g.UserCreated("alice"))
	require.NoError(t, g.UserDeleted("alice"))

	_, ok := g.registry.Get(g.shapefileFolderDir("alice"), GeoserverKind)
	assert.False(t, ok)
}

func TestGeoserver_PermissionCreatedChmodsShapefileComponents(t *testing.T) {
	workspaceDir := t.TempDir()
	g := newGeoserver(t, "http://geoserver.example", workspaceDir)

	folder := g.shapefileFolderDir("alice")
	require.NoError(t, os.MkdirAll(folder, 0o755))
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		require.NoError(t, os.WriteFile(filepath.Join(folder, "forest"+ext), []byte("x"), 0o600))
	}

	err := g.PermissionCreated(model.Permission{
		Name: "transaction", User: "alice", ResourceFullName: "/workspaces/alice/forest",
	})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(folder, "forest.shp"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o664), info.Mode().Perm())
}

func TestGeoserver_PermissionCreatedIgnoresUnrelatedPermission(t *testing.T) {
	g := newGeoserver(t, "http://geoserver.example", t.TempDir())
	err := g.PermissionCreated(model.Permission{Name: "not-a-geoserver-permission", User: "alice"})
	assert.NoError(t, err)
}

func TestGeoserver_PermissionDeletedIsUnsupported(t *testing.T) {
	g := newGeoserver(t, "http://geoserver.example", t.TempDir())
	assert.Error(t, g.PermissionDeleted(model.Permission{}))
}

func TestShapefileInfo_DerivesWorkspaceAndName(t *testing.T) {
	workspaceName, shapefileName, err := shapefileInfo(filepath.Join("data", "alice", "shapefile_datastore", "forest.shp"))
	require.NoError(t, err)
	assert.Equal(t, "alice", workspaceName)
	assert.Equal(t, "forest", shapefileName)
}

func TestShapefileInfo_RejectsShallowPath(t *testing.T) {
	_, _, err := shapefileInfo("forest.shp")
	assert.Error(t, err)
}

func TestGeoserver_OnCreatedIgnoresNonShapefile(t *testing.T) {
	g := newGeoserver(t, "http://geoserver.example", t.TempDir())
	assert.NoError(t, g.OnCreated(filepath.Join(g.shapefileFolderDir("alice"), "forest.prj")))
}
