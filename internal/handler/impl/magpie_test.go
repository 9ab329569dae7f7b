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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouranosinc/syncbird/internal/config"
	"github.com/ouranosinc/syncbird/internal/model"
	"github.com/ouranosinc/syncbird/internal/syncpoint"
)

func TestNewMagpie_MissingCredentialsIsRejected(t *testing.T) {
	sync, err := syncpoint.NewSynchronizer(nil)
	require.NoError(t, err)
	_, err = NewMagpie(logr.Discard(), "magpie", model.HandlerConfig{URL: "http://magpie.example"}, sync)
	assert.Error(t, err)
}

func TestMagpie_PermissionCreatedAppliesSyncedPermissions(t *testing.T) {
	var permissionsBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/signin", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "auth_tkt", Value: "stub-session"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/resources/42", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"resources": []map[string]string{
				{"resource_name": "geodata", "resource_type": "directory"},
				{"resource_name": "forest.tif", "resource_type": "file"},
			},
		})
	})
	mux.HandleFunc("/permissions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&permissionsBody))
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.SyncPointConfig{
		ID: "geodata-sync",
		Services: map[string]map[string][]model.ResourceSegment{
			"magpie":  {"magpieData": {{Name: "geodata", Type: "directory"}, {Name: model.SingleToken, Type: "file"}}},
			"thredds": {"threddsData": {{Name: "geodata", Type: "directory"}, {Name: model.SingleToken, Type: "file"}}},
		},
		PermissionsMapping: []string{"magpieData:read <-> threddsData:browse"},
	}
	synchronizer, err := syncpoint.NewSynchronizer([]config.SyncPointConfig{cfg})
	require.NoError(t, err)

	m, err := NewMagpie(logr.Discard(), "magpie", model.HandlerConfig{
		URL:   srv.URL,
		Extra: map[string]string{"admin_user": "admin", "admin_password": "secret"},
	}, synchronizer)
	require.NoError(t, err)

	perm := model.Permission{
		ComponentName: "magpie",
		ResourceID:    "42",
		Name:          "read",
		Access:        model.AccessAllow,
		Scope:         model.ScopeMatch,
		User:          "alice",
	}
	require.NoError(t, m.PermissionCreated(perm))

	permissions, ok := permissionsBody["permissions"].([]any)
	require.True(t, ok)
	require.Len(t, permissions, 2)
	last, ok := permissions[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "forest.tif", last["resource_name"])
	assert.Equal(t, "browse", last["permission"])
	assert.Equal(t, "alice", last["user"])
	assert.Equal(t, "create", last["action"])
}

func TestMagpie_UserLifecycleUnsupported(t *testing.T) {
	sync, err := syncpoint.NewSynchronizer(nil)
	require.NoError(t, err)
	m, err := NewMagpie(logr.Discard(), "magpie", model.HandlerConfig{
		URL:   "http://magpie.example",
		Extra: map[string]string{"admin_user": "admin", "admin_password": "secret"},
	}, sync)
	require.NoError(t, err)

	assert.Error(t, m.UserCreated("alice"))
	assert.Error(t, m.UserDeleted("alice"))
	_, err = m.GetResourceID("geodata")
	assert.Error(t, err)
}
