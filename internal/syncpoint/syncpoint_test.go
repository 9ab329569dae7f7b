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

func seg(name, typ string) model.ResourceSegment { return model.ResourceSegment{Name: name, Type: typ} }

func pathSeg(name, typ string) model.ResourcePathSegment {
	return model.ResourcePathSegment{ResourceName: name, ResourceType: typ}
}

func TestSync_TokenExpansionBidirectional(t *testing.T) {
	cfg := config.SyncPointConfig{
		ID: "geodata",
		Services: map[string]map[string][]model.ResourceSegment{
			"catalog": {
				"A": {seg("catalog", "service"), seg("{ws}", "workspace"), seg(model.MultiToken, "file")},
			},
			"magpie": {
				"B": {seg("root", "service"), seg("{ws}", "workspace"), seg(model.MultiToken, "file")},
			},
		},
		PermissionsMapping: []string{"A:[read] <-> B:[read]"},
	}
	sp, err := Compile(cfg)
	require.NoError(t, err)

	perm := model.Permission{
		ComponentName: "catalog",
		Name:          "read",
		Access:        model.AccessAllow,
		Scope:         model.ScopeMatch,
		User:          "u1",
	}
	sourceTree := []model.ResourcePathSegment{
		pathSeg("catalog", "service"),
		pathSeg("alice", "workspace"),
		pathSeg("a", "file"),
		pathSeg("b", "file"),
		pathSeg("c.nc", "file"),
	}

	var calls []struct {
		component string
		segments  []TargetSegment
	}
	err = sp.Sync(perm, sourceTree, func(component string, segments []TargetSegment) error {
		calls = append(calls, struct {
			component string
			segments  []TargetSegment
		}{component, segments})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	assert.Equal(t, "magpie", calls[0].component)
	want := []TargetSegment{
		{ResourceName: "root", ResourceType: "service"},
		{ResourceName: "alice", ResourceType: "workspace"},
		{ResourceName: "a", ResourceType: "file"},
		{ResourceName: "b", ResourceType: "file"},
		{ResourceName: "c.nc", ResourceType: "file", Permission: "read", Access: model.AccessAllow, User: "u1"},
	}
	assert.Equal(t, want, calls[0].segments)
}

func TestSync_AmbiguousMatchFails(t *testing.T) {
	cfg := config.SyncPointConfig{
		ID: "ambiguous",
		Services: map[string]map[string][]model.ResourceSegment{
			"catalog": {
				"A": {seg("catalog", "service"), seg("foo", "file")},
				"B": {seg("catalog", "service"), seg("foo", "file")},
			},
		},
	}
	sp, err := Compile(cfg)
	require.NoError(t, err)

	perm := model.Permission{ComponentName: "catalog", Name: "read", Access: model.AccessAllow, Scope: model.ScopeMatch, User: "u1"}
	sourceTree := []model.ResourcePathSegment{pathSeg("catalog", "service"), pathSeg("foo", "file")}

	err = sp.Sync(perm, sourceTree, func(string, []TargetSegment) error { return nil })
	require.Error(t, err)
	var ambigErr *AmbiguityError
	require.ErrorAs(t, err, &ambigErr)
}

func TestSync_NoMatchFails(t *testing.T) {
	cfg := config.SyncPointConfig{
		ID: "nomatch",
		Services: map[string]map[string][]model.ResourceSegment{
			"catalog": {
				"A": {seg("catalog", "service"), seg("foo", "file")},
			},
		},
	}
	sp, err := Compile(cfg)
	require.NoError(t, err)

	perm := model.Permission{ComponentName: "catalog", Name: "read", Access: model.AccessAllow, Scope: model.ScopeMatch, User: "u1"}
	sourceTree := []model.ResourcePathSegment{pathSeg("catalog", "service"), pathSeg("bar", "file")}

	err = sp.Sync(perm, sourceTree, func(string, []TargetSegment) error { return nil })
	require.Error(t, err)
	var noMatchErr *NoMatchError
	require.ErrorAs(t, err, &noMatchErr)
}

func TestSync_SkipsSelfPair(t *testing.T) {
	cfg := config.SyncPointConfig{
		ID: "selfskip",
		Services: map[string]map[string][]model.ResourceSegment{
			"catalog": {
				"A": {seg("catalog", "service"), seg(model.MultiToken, "file")},
			},
			"magpie": {
				"B": {seg("root", "service"), seg(model.MultiToken, "file")},
			},
		},
		PermissionsMapping: []string{"A:[read] <-> B:[read]"},
	}
	sp, err := Compile(cfg)
	require.NoError(t, err)

	perm := model.Permission{ComponentName: "catalog", Name: "read", Access: model.AccessAllow, Scope: model.ScopeMatch, User: "u1"}
	sourceTree := []model.ResourcePathSegment{pathSeg("catalog", "service"), pathSeg("x.nc", "file")}

	var calls int
	err = sp.Sync(perm, sourceTree, func(component string, segments []TargetSegment) error {
		calls++
		assert.Equal(t, "magpie", component)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSync_UnidirectionalOnlyGoesOneWay(t *testing.T) {
	cfg := config.SyncPointConfig{
		ID: "unidir",
		Services: map[string]map[string][]model.ResourceSegment{
			"catalog": {
				"A": {seg("catalog", "service"), seg(model.MultiToken, "file")},
			},
			"magpie": {
				"B": {seg("root", "service"), seg(model.MultiToken, "file")},
			},
		},
		PermissionsMapping: []string{"A:[read] -> B:[read]"},
	}
	sp, err := Compile(cfg)
	require.NoError(t, err)

	// B -> A direction not configured: a read event on magpie (B) must not propagate.
	perm := model.Permission{ComponentName: "magpie", Name: "read", Access: model.AccessAllow, Scope: model.ScopeMatch, User: "u1"}
	sourceTree := []model.ResourcePathSegment{pathSeg("root", "service"), pathSeg("x.nc", "file")}

	var calls int
	err = sp.Sync(perm, sourceTree, func(string, []TargetSegment) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestSync_PropagationRoundTrip(t *testing.T) {
	cfg := config.SyncPointConfig{
		ID: "roundtrip",
		Services: map[string]map[string][]model.ResourceSegment{
			"catalog": {
				"A": {seg("catalog", "service"), seg(model.MultiToken, "file")},
			},
			"magpie": {
				"B": {seg("root", "service"), seg(model.MultiToken, "file")},
			},
		},
		PermissionsMapping: []string{"A:[read] <-> B:[read]"},
	}
	sp, err := Compile(cfg)
	require.NoError(t, err)

	sourceTree := []model.ResourcePathSegment{pathSeg("catalog", "service"), pathSeg("x.nc", "file")}

	state := map[string]bool{}
	apply := func(component string, segments []TargetSegment) error {
		leaf := segments[len(segments)-1]
		key := component + "/" + leaf.ResourceName + "/" + leaf.Permission + "/" + leaf.User
		if leaf.Access == model.AccessDeny {
			delete(state, key)
		} else {
			state[key] = true
		}
		return nil
	}

	created := model.Permission{ComponentName: "catalog", Name: "read", Access: model.AccessAllow, Scope: model.ScopeMatch, User: "u1"}
	require.NoError(t, sp.Sync(created, sourceTree, apply))
	assert.Len(t, state, 1)

	deleted := created
	deleted.Access = model.AccessDeny
	require.NoError(t, sp.Sync(deleted, sourceTree, apply))
	assert.Empty(t, state)
}
