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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/metrics"
	"github.com/ouranosinc/syncbird/internal/model"
	"github.com/ouranosinc/syncbird/internal/taskrunner"
)

// GeoserverKind is the callback_kind Geoserver registers under when
// watching a user's shapefile datastore directory.
const GeoserverKind = "geoserver"

const shapefileMainExt = ".shp"

var shapefileOtherExts = []string{".prj", ".dbf", ".shx"}

// GeoserverError reports a Geoserver REST API failure that should not be
// retried: the request itself was rejected, not merely delayed.
type GeoserverError struct {
	Operation string
	Detail    string
}

func (e *GeoserverError) Error() string {
	return fmt.Sprintf("geoserver operation %q failed: %s", e.Operation, e.Detail)
}

// Geoserver keeps a Geoserver instance's workspaces, datastores and
// published shapefile layers in sync with each user's shapefile
// datastore directory on disk.
type Geoserver struct {
	handler.Base
	log           logr.Logger
	client        *http.Client
	adminUser     string
	adminPassword string
	registry      *fswatch.Registry
	runner        *taskrunner.Runner
}

// NewGeoserver constructs a Geoserver handler. url and workspace_dir are
// required, along with admin_user and admin_password in extra config.
// m is attached to the handler's internal task runner so retry attempts
// against the Geoserver REST API count toward TaskRetryAttemptsTotal; a
// nil m simply means the runner records nothing.
func NewGeoserver(log logr.Logger, name string, cfg model.HandlerConfig, registry *fswatch.Registry, m *metrics.Metrics) (*Geoserver, error) {
	base, err := handler.NewBase(name, cfg, handler.RequiredURL, handler.RequiredWorkspaceDir)
	if err != nil {
		return nil, err
	}
	adminUser := cfg.Extra["admin_user"]
	adminPassword := cfg.Extra["admin_password"]
	if adminUser == "" || adminPassword == "" {
		return nil, &magpieCredentialsError{Handler: name}
	}
	l := log.WithName(name)
	runner := taskrunner.New(l)
	runner.SetMetrics(m)
	return &Geoserver{
		Base:          base,
		log:           l,
		client:        &http.Client{Timeout: 30 * time.Second},
		adminUser:     adminUser,
		adminPassword: adminPassword,
		registry:      registry,
		runner:        runner,
	}, nil
}

func (g *Geoserver) apiURL() string { return g.URL() + "/rest" }

func (g *Geoserver) shapefileFolderDir(workspaceName string) string {
	return filepath.Join(g.WorkspaceDir(), workspaceName, "shapefile_datastore")
}

func datastoreName(workspaceName string) string {
	return "shapefile_datastore_" + workspaceName
}

func (g *Geoserver) doRequest(ctx context.Context, operation, method, path string, payload any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", operation, err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.apiURL()+path, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", operation, err)
	}
	req.SetBasicAuth(g.adminUser, g.adminPassword)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return taskrunner.Retryable(fmt.Errorf("connection to geoserver failed during %s: %w", operation, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		g.log.Info("geoserver operation succeeded", "operation", operation)
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &GeoserverError{Operation: operation, Detail: "invalid administrator credentials"}
	default:
		return &GeoserverError{Operation: operation, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
	}
}

func (g *Geoserver) createWorkspaceTask(workspaceName string) taskrunner.Task {
	return taskrunner.Task{
		Name: "create_workspace",
		Run: func(ctx context.Context) error {
			return g.doRequest(ctx, "create_workspace", http.MethodPost, "/workspaces/", map[string]any{
				"workspace": map[string]string{"name": workspaceName, "isolated": "True"},
			})
		},
	}
}

func (g *Geoserver) createDatastoreTask(workspaceName string) taskrunner.Task {
	return taskrunner.Task{
		Name: "create_datastore",
		Run: func(ctx context.Context) error {
			name := datastoreName(workspaceName)
			if err := g.doRequest(ctx, "create_datastore", http.MethodPost,
				fmt.Sprintf("/workspaces/%s/datastores", workspaceName), map[string]any{
					"dataStore": map[string]any{
						"name": name, "type": "Directory of spatial files (shapefiles)",
						"connectionParameters": map[string]any{"entry": []any{}},
					},
				}); err != nil {
				return err
			}
			datastorePath := "file://" + g.shapefileFolderDir(workspaceName)
			return g.doRequest(ctx, "configure_datastore", http.MethodPut,
				fmt.Sprintf("/workspaces/%s/datastores/%s", workspaceName, name), map[string]any{
					"dataStore": map[string]any{
						"name": name, "type": "Directory of spatial files (shapefiles)",
						"connectionParameters": map[string]any{"entry": []map[string]string{
							{"@key": "url", "$": datastorePath},
							{"@key": "filetype", "$": "shapefile"},
						}},
					},
				})
		},
	}
}

// UserCreated creates the user's shapefile datastore directory
// synchronously, then kicks off workspace and datastore creation on
// Geoserver in the background, and starts monitoring the directory for
// new shapefiles.
func (g *Geoserver) UserCreated(userName string) error {
	dir := g.shapefileFolderDir(userName)
	if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("creating datastore directory %q: %w", dir, err)
	}

	go func() {
		if err := g.runner.Chain(context.Background(), g.createWorkspaceTask(userName), g.createDatastoreTask(userName)); err != nil {
			g.log.Error(err, "failed to provision geoserver workspace for user", "user", userName)
		}
	}()

	g.log.Info("starting shapefile datastore monitoring for created user", "user", userName)
	_, err := g.registry.Register(dir, true, GeoserverKind, g)
	return err
}

// UserDeleted removes the user's Geoserver workspace in the background
// and stops monitoring the datastore directory.
func (g *Geoserver) UserDeleted(userName string) error {
	go func() {
		task := taskrunner.Task{Name: "remove_workspace", Run: func(ctx context.Context) error {
			return g.doRequest(ctx, "remove_workspace", http.MethodDelete, fmt.Sprintf("/workspaces/%s?recurse=true", userName), nil)
		}}
		if err := g.runner.Execute(context.Background(), task); err != nil {
			g.log.Error(err, "failed to remove geoserver workspace for user", "user", userName)
		}
	}()

	_, err := g.registry.Unregister(g.shapefileFolderDir(userName), GeoserverKind)
	return err
}

// GetResourceID is not implemented by the geoserver adapter.
func (g *Geoserver) GetResourceID(resourceFullName string) (string, error) {
	return "", fmt.Errorf("geoserver handler does not support resource id lookup for %q", resourceFullName)
}

// relevantPermission reports whether name is one of the OGC service
// permission names Geoserver cares about.
func relevantPermission(name string) bool {
	for _, list := range [][]string{WFSReadPermissions, WFSWritePermissions, WMSReadPermissions} {
		for _, p := range list {
			if p == name {
				return true
			}
		}
	}
	return false
}

func isWritePermission(name string) bool {
	for _, p := range WFSWritePermissions {
		if p == name {
			return true
		}
	}
	return false
}

// PermissionCreated reconciles the shapefile datastore's on-disk
// permissions for a Geoserver-relevant permission change. The workspace
// name is assumed to be the permission's user.
func (g *Geoserver) PermissionCreated(perm model.Permission) error {
	if !relevantPermission(perm.Name) {
		g.log.V(1).Info("ignoring non-geoserver permission", "permission", perm.Name)
		return nil
	}
	workspaceName := perm.User
	layerName := perm.ResourceFullName
	if idx := strings.LastIndex(layerName, "/"); idx >= 0 {
		layerName = layerName[idx+1:]
	}

	var mode os.FileMode = 0o644
	if isWritePermission(perm.Name) {
		mode = 0o664
	}
	for _, path := range shapefilePaths(g.shapefileFolderDir(workspaceName), layerName) {
		if _, err := os.Stat(path); err != nil {
			g.log.Info("shapefile component not found, skipping permission update", "path", path)
			continue
		}
		if err := os.Chmod(path, mode); err != nil {
			g.log.Error(err, "failed to update shapefile permissions", "path", path)
		}
	}
	return nil
}

// PermissionDeleted is not implemented: the source handler raises the
// equivalent of NotImplementedError here too.
func (g *Geoserver) PermissionDeleted(perm model.Permission) error {
	return fmt.Errorf("geoserver handler does not support permission_deleted")
}

func shapefilePaths(folder, shapefileName string) []string {
	paths := make([]string, 0, len(shapefileOtherExts)+1)
	for _, ext := range shapefileOtherExts {
		paths = append(paths, filepath.Join(folder, shapefileName+ext))
	}
	return append(paths, filepath.Join(folder, shapefileName+shapefileMainExt))
}

func shapefileInfo(relativePath string) (workspaceName, shapefileName string, err error) {
	parts := strings.Split(relativePath, string(os.PathSeparator))
	if len(parts) < 3 {
		return "", "", fmt.Errorf("cannot derive workspace from shapefile path %q", relativePath)
	}
	workspaceName = parts[len(parts)-3]
	base := filepath.Base(relativePath)
	shapefileName = strings.TrimSuffix(base, filepath.Ext(base))
	return workspaceName, shapefileName, nil
}

// OnCreated validates and publishes a newly created shapefile. Non-.shp
// files (its three companion extensions) are ignored here: the monitor
// delivers events for every file in the datastore but only the primary
// .shp file triggers publishing.
func (g *Geoserver) OnCreated(path string) error {
	if !strings.HasSuffix(path, shapefileMainExt) {
		return nil
	}
	workspaceName, shapefileName, err := shapefileInfo(path)
	if err != nil {
		return err
	}

	go func() {
		validate := taskrunner.Task{
			Name:   "validate_shapefile",
			Policy: taskrunner.FileNotFoundPolicy,
			Run: func(ctx context.Context) error {
				return g.validateShapefile(workspaceName, shapefileName)
			},
		}
		publish := taskrunner.Task{
			Name: "publish_shapefile",
			Run: func(ctx context.Context) error {
				return g.doRequest(ctx, "publish_shapefile", http.MethodPost,
					fmt.Sprintf("/workspaces/%s/datastores/%s/featuretypes", workspaceName, datastoreName(workspaceName)),
					map[string]any{"featureType": map[string]any{"name": shapefileName, "srs": "EPSG:4326"}})
			},
		}
		if err := g.runner.Chain(context.Background(), validate, publish); err != nil {
			g.log.Error(err, "failed to publish shapefile", "workspace", workspaceName, "shapefile", shapefileName)
		}
	}()
	return nil
}

func (g *Geoserver) validateShapefile(workspaceName, shapefileName string) error {
	folder := g.shapefileFolderDir(workspaceName)
	for _, ext := range shapefileOtherExts {
		if _, err := os.Stat(filepath.Join(folder, shapefileName+ext)); err != nil {
			return taskrunner.Retryable(fmt.Errorf("shapefile %q is incomplete: missing %s", shapefileName, ext))
		}
	}
	return nil
}

// OnDeleted removes the corresponding layer from Geoserver when its
// primary .shp file is deleted.
func (g *Geoserver) OnDeleted(path string) error {
	if !strings.HasSuffix(path, shapefileMainExt) {
		return nil
	}
	workspaceName, shapefileName, err := shapefileInfo(path)
	if err != nil {
		return err
	}
	go func() {
		task := taskrunner.Task{Name: "remove_shapefile", Run: func(ctx context.Context) error {
			return g.doRequest(ctx, "remove_shapefile", http.MethodDelete,
				fmt.Sprintf("/workspaces/%s/datastores/%s/featuretypes/%s?recurse=true", workspaceName, datastoreName(workspaceName), shapefileName), nil)
		}}
		if err := g.runner.Execute(context.Background(), task); err != nil {
			g.log.Error(err, "failed to remove shapefile layer", "workspace", workspaceName, "shapefile", shapefileName)
		}
	}()
	return nil
}

// OnModified is a no-op: the catalog indexer already logs file
// modifications, and Geoserver has nothing further to reconcile.
func (g *Geoserver) OnModified(path string) error { return nil }

var (
	_ handler.Handler           = (*Geoserver)(nil)
	_ handler.FSCallbackHandler = (*Geoserver)(nil)
)
