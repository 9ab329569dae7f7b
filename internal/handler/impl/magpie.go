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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/model"
	"github.com/ouranosinc/syncbird/internal/syncpoint"
)

// cookieTimeout bounds how long a Magpie session cookie is reused before
// the handler signs in again.
const cookieTimeout = 60 * time.Second

// Permission name vocabularies for the OGC service types Magpie fronts.
// Geoserver maps filesystem read/write access against these lists when
// reconciling permission events on its resources.
var (
	WFSReadPermissions = []string{
		"describefeaturetype", "describestoredqueries", "getcapabilities", "getfeature",
		"getgmlobject", "getpropertyvalue", "liststoredqueries",
	}
	WFSWritePermissions = []string{"createstoredquery", "dropstoredquery", "getfeaturewithlock", "lockfeature", "transaction"}
	WMSReadPermissions  = []string{"describelayer", "getcapabilities", "getfeatureinfo", "getlegendgraphic", "getmap"}
)

// Magpie is the authoritative permission store. It does not react to
// user lifecycle events; it keeps every component's shared resources in
// sync by replaying a permission change, via the sync-point engine, onto
// every resource that is configured to mirror it.
type Magpie struct {
	handler.Base
	log           logr.Logger
	client        *http.Client
	adminUser     string
	adminPassword string
	synchronizer  *syncpoint.Synchronizer

	mu        sync.Mutex
	lastLogin time.Time
}

type magpieCredentialsError struct{ Handler string }

func (e *magpieCredentialsError) Error() string {
	return fmt.Sprintf("%s handler requires admin_user and admin_password in its configuration", e.Handler)
}

// NewMagpie constructs a Magpie handler. url is required, along with
// admin_user and admin_password carried in the handler's extra config.
func NewMagpie(log logr.Logger, name string, cfg model.HandlerConfig, synchronizer *syncpoint.Synchronizer) (*Magpie, error) {
	base, err := handler.NewBase(name, cfg, handler.RequiredURL)
	if err != nil {
		return nil, err
	}
	adminUser := cfg.Extra["admin_user"]
	adminPassword := cfg.Extra["admin_password"]
	if adminUser == "" || adminPassword == "" {
		return nil, &magpieCredentialsError{Handler: name}
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Magpie{
		Base:          base,
		log:           log.WithName(name),
		client:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		adminUser:     adminUser,
		adminPassword: adminPassword,
		synchronizer:  synchronizer,
	}, nil
}

// login signs in to Magpie using the admin credentials if the cached
// session cookie is absent or older than cookieTimeout.
func (m *Magpie) login() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastLogin.IsZero() && time.Since(m.lastLogin) < cookieTimeout {
		return nil
	}

	body, err := json.Marshal(map[string]string{"user_name": m.adminUser, "password": m.adminPassword})
	if err != nil {
		return fmt.Errorf("encoding signin request: %w", err)
	}
	resp, err := m.client.Post(m.URL()+"/signin", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("signing in to magpie at %q: %w", m.URL(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("magpie signin returned status %d", resp.StatusCode)
	}
	m.lastLogin = time.Now()
	return nil
}

// sendRequest performs an authenticated request against the Magpie API,
// retrying once after a fresh login if the first attempt is unauthorized.
func (m *Magpie) sendRequest(method, path string, query url.Values, body any) (*http.Response, error) {
	if err := m.login(); err != nil {
		return nil, err
	}
	resp, err := m.doRequest(method, path, query, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		m.mu.Lock()
		m.lastLogin = time.Time{}
		m.mu.Unlock()
		if err := m.login(); err != nil {
			return nil, err
		}
		return m.doRequest(method, path, query, body)
	}
	return resp, nil
}

func (m *Magpie) doRequest(method, path string, query url.Values, body any) (*http.Response, error) {
	u := m.URL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("building request to %q: %w", u, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return m.client.Do(req)
}

type resourceTreeItem struct {
	ResourceName string `json:"resource_name"`
	ResourceType string `json:"resource_type"`
}

type resourceTreeResponse struct {
	Resources []resourceTreeItem `json:"resources"`
}

// getResourcesTree fetches the full ancestor-to-descendant resource path
// for resourceID, ordered from root to leaf.
func (m *Magpie) getResourcesTree(resourceID string) ([]model.ResourcePathSegment, error) {
	query := url.Values{"parent": {"true"}, "invert": {"true"}, "flatten": {"true"}}
	resp, err := m.sendRequest(http.MethodGet, "/resources/"+resourceID, query, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching resource tree for %q: %w", resourceID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching resource tree for %q returned status %d", resourceID, resp.StatusCode)
	}
	var parsed resourceTreeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding resource tree response: %w", err)
	}
	tree := make([]model.ResourcePathSegment, 0, len(parsed.Resources))
	for _, r := range parsed.Resources {
		tree = append(tree, model.ResourcePathSegment{ResourceName: r.ResourceName, ResourceType: r.ResourceType})
	}
	return tree, nil
}

type permissionDatum struct {
	ResourceName string `json:"resource_name"`
	ResourceType string `json:"resource_type"`
	Permission   string `json:"permission,omitempty"`
	Access       string `json:"access,omitempty"`
	User         string `json:"user,omitempty"`
	Group        string `json:"group,omitempty"`
	Action       string `json:"action,omitempty"`
}

func segmentsToData(segments []syncpoint.TargetSegment, action string) []permissionDatum {
	data := make([]permissionDatum, len(segments))
	for i, seg := range segments {
		data[i] = permissionDatum{ResourceName: seg.ResourceName, ResourceType: seg.ResourceType}
	}
	last := &data[len(data)-1]
	leaf := segments[len(segments)-1]
	last.Permission = leaf.Permission
	last.Access = leaf.Access
	last.User = leaf.User
	last.Group = leaf.Group
	last.Action = action
	return data
}

// applyPermission executes a create-or-remove permission change against
// Magpie for the given resource path, as computed by the sync-point
// engine for one target resource key.
func (m *Magpie) applyPermission(action string) syncpoint.PermOperation {
	return func(targetComponent string, segments []syncpoint.TargetSegment) error {
		if len(segments) == 0 {
			return fmt.Errorf("empty target segment list for component %s", targetComponent)
		}
		data := segmentsToData(segments, action)
		resp, err := m.sendRequest(http.MethodPatch, "/permissions", nil, map[string]any{"permissions": data})
		if err != nil {
			return fmt.Errorf("applying %s permission on %s: %w", action, targetComponent, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("magpie permission %s on %s returned status %d", action, targetComponent, resp.StatusCode)
		}
		return nil
	}
}

// GetResourceID is not implemented: Magpie's own resources already carry
// their resource_id, there is no component-local name to translate.
func (m *Magpie) GetResourceID(resourceFullName string) (string, error) {
	return "", fmt.Errorf("magpie handler does not support resource id lookup for %q", resourceFullName)
}

// UserCreated is not applicable: Magpie does not provision platform
// users in response to its own webhook, only completes pending requests
// issued by the user-creation flow elsewhere.
func (m *Magpie) UserCreated(userName string) error {
	return fmt.Errorf("magpie handler does not support user_created")
}

// UserDeleted is not applicable; see UserCreated.
func (m *Magpie) UserDeleted(userName string) error {
	return fmt.Errorf("magpie handler does not support user_deleted")
}

// PermissionCreated resolves the full resource path for perm and
// replays the equivalent permission onto every component sharing that
// resource, per the configured sync points.
func (m *Magpie) PermissionCreated(perm model.Permission) error {
	tree, err := m.getResourcesTree(perm.ResourceID)
	if err != nil {
		return err
	}
	return m.synchronizer.Propagate(perm, tree, m.applyPermission("create"))
}

// PermissionDeleted mirrors PermissionCreated for permission removal.
func (m *Magpie) PermissionDeleted(perm model.Permission) error {
	tree, err := m.getResourcesTree(perm.ResourceID)
	if err != nil {
		return err
	}
	return m.synchronizer.Propagate(perm, tree, m.applyPermission("remove"))
}

var _ handler.Handler = (*Magpie)(nil)
