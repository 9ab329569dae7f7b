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

package syncpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouranosinc/syncbird/internal/config"
	"github.com/ouranosinc/syncbird/internal/model"
)

func TestSynchronizer_PropagatesOnlyThroughMatchingPoints(t *testing.T) {
	matching := config.SyncPointConfig{
		ID: "matching",
		Services: map[string]map[string][]model.ResourceSegment{
			"magpie":  {"magpieData": {seg("geodata", "directory"), seg(model.SingleToken, "file")}},
			"thredds": {"threddsData": {seg("geodata", "directory"), seg(model.SingleToken, "file")}},
		},
		PermissionsMapping: []string{"magpieData:read <-> threddsData:browse"},
	}
	unrelated := config.SyncPointConfig{
		ID: "unrelated",
		Services: map[string]map[string][]model.ResourceSegment{
			"nginx":   {"nginxRoot": {seg("www", "directory")}},
			"thredds": {"threddsRoot": {seg("www", "directory")}},
		},
		PermissionsMapping: []string{"nginxRoot:read <-> threddsRoot:browse"},
	}

	sync, err := NewSynchronizer([]config.SyncPointConfig{matching, unrelated})
	require.NoError(t, err)

	perm := model.Permission{ComponentName: "magpie", ResourceID: "42", Name: "read", Access: model.AccessAllow, Scope: model.ScopeMatch, User: "alice"}
	tree := []model.ResourcePathSegment{pathSeg("geodata", "directory"), pathSeg("forest.tif", "file")}

	var applied []string
	err = sync.Propagate(perm, tree, func(targetComponent string, segments []TargetSegment) error {
		applied = append(applied, targetComponent)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"thredds"}, applied)
}

func TestSynchronizer_NoMatchingPointIsANoop(t *testing.T) {
	unrelated := config.SyncPointConfig{
		ID: "unrelated",
		Services: map[string]map[string][]model.ResourceSegment{
			"nginx":   {"nginxRoot": {seg("www", "directory")}},
			"thredds": {"threddsRoot": {seg("www", "directory")}},
		},
		PermissionsMapping: []string{"nginxRoot:read <-> threddsRoot:browse"},
	}
	sync, err := NewSynchronizer([]config.SyncPointConfig{unrelated})
	require.NoError(t, err)

	perm := model.Permission{ComponentName: "magpie", ResourceID: "1", Name: "read", Access: model.AccessAllow, Scope: model.ScopeMatch, User: "alice"}
	tree := []model.ResourcePathSegment{pathSeg("geodata", "directory")}

	called := false
	err = sync.Propagate(perm, tree, func(string, []TargetSegment) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
