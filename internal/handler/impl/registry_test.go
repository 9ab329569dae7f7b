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
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouranosinc/syncbird/internal/fswatch"
	"github.com/ouranosinc/syncbird/internal/model"
	"github.com/ouranosinc/syncbird/internal/syncpoint"
)

func TestNewRegistry_ConstructsEveryRecognizedKind(t *testing.T) {
	fsRegistry := fswatch.NewRegistry(logr.Discard(), newMemStore())
	synchronizer, err := syncpoint.NewSynchronizer(nil)
	require.NoError(t, err)

	registry := NewRegistry(logr.Discard(), fsRegistry, synchronizer, nil)

	cfgs := map[string]model.HandlerConfig{
		KindFileSystem: {WorkspaceDir: t.TempDir()},
		KindMagpie:     {URL: "http://magpie.example", Extra: map[string]string{"admin_user": "admin", "admin_password": "pw"}},
		KindGeoserver:  {URL: "http://geoserver.example", WorkspaceDir: t.TempDir(), Extra: map[string]string{"admin_user": "admin", "admin_password": "geoserver"}},
		KindNginx:      {},
		KindThredds:    {},
		KindCatalog:    {URL: "http://catalog.example", WorkspaceDir: t.TempDir()},
		KindDatashare:  {WorkspaceDir: t.TempDir(), Extra: map[string]string{"public_dir": t.TempDir()}},
	}

	for kind, cfg := range cfgs {
		ctor, ok := registry[kind]
		require.Truef(t, ok, "missing constructor for kind %q", kind)
		h, err := ctor(kind, cfg)
		require.NoErrorf(t, err, "constructing kind %q", kind)
		assert.Equal(t, kind, h.Name())
	}
}
