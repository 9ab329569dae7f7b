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

// Package config loads and validates the YAML configuration consumed by
// the handler factory and the sync-point engine. Config errors are
// always fatal: there is no partial load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/ouranosinc/syncbird/internal/model"
)

// SyncPointConfig is one declared `sync_permissions` entry: which
// components share which resource_keys, and how permissions map between
// them.
type SyncPointConfig struct {
	ID                string
	Services          map[string]map[string][]model.ResourceSegment
	PermissionsMapping []string
}

// Config is the fully parsed and validated configuration tree.
type Config struct {
	Handlers map[string]model.HandlerConfig
	// HandlerOrder records handler names in first-seen declaration order
	// across merged config files, since map iteration order is not
	// significant; priority ties break on this order.
	HandlerOrder []string
	SyncPoints   []SyncPointConfig
}

var knownExtensions = map[string]bool{
	".yml": true, ".yaml": true, ".cfg": true, ".json": true,
}

// Load reads one YAML file, or every recognized file in a directory
// (alphabetical order), merges the `handlers` and `sync_permissions`
// sections, expands environment variables and validates the result.
func Load(log logr.Logger, path string) (*Config, error) {
	files, err := listConfigFiles(path)
	if err != nil {
		return nil, newError(KindGeneric, "invalid config path %q: %v", path, err)
	}
	if len(files) == 0 {
		return nil, newError(KindGeneric, "no configuration files found at %q", path)
	}

	cfg := &Config{Handlers: map[string]model.HandlerConfig{}}
	for _, f := range files {
		raw, handlerOrder, err := loadYAMLFile(f)
		if err != nil {
			return nil, newError(KindGeneric, "invalid config file [%s]: %v", f, err)
		}
		raw = expandEnvAll(raw)
		doc, ok := raw.(map[string]any)
		if !ok {
			return nil, newError(KindGeneric, "config file %q does not contain a mapping document", f)
		}

		if err := mergeHandlers(log, cfg, doc, handlerOrder); err != nil {
			return nil, err
		}
		if err := mergeSyncPoints(log, cfg, doc); err != nil {
			return nil, err
		}
	}

	for _, sp := range cfg.SyncPoints {
		if err := validateSyncConfig(sp); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func listConfigFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if knownExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, filepath.Join(path, n))
	}
	return out, nil
}

// loadYAMLFile decodes path both into the generic `any` tree used by the
// rest of the loader and, separately, walks the raw node tree to recover
// the declaration order of the top-level `handlers` mapping — order that
// a plain map[string]any decode would discard, but that priority-tie
// resolution (ties break on first-seen declaration order) depends on.
func loadYAMLFile(path string) (any, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, err
	}
	return normalizeYAML(doc), handlerDeclarationOrder(&root), nil
}

// handlerDeclarationOrder returns the keys of the top-level `handlers:`
// mapping node in the order they appear in the source document.
func handlerDeclarationOrder(root *yaml.Node) []string {
	if len(root.Content) == 0 {
		return nil
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "handlers" {
			continue
		}
		handlersNode := doc.Content[i+1]
		if handlersNode.Kind != yaml.MappingNode {
			return nil
		}
		var names []string
		for j := 0; j+1 < len(handlersNode.Content); j += 2 {
			names = append(names, handlersNode.Content[j].Value)
		}
		return names
	}
	return nil
}

// normalizeYAML recursively converts yaml.v3's map[string]interface{}
// decode output (which may nest map[string]interface{} already, but
// numeric/bool scalars decode as native Go types) into the any tree our
// env-expansion and merge code expects. yaml.v3 already produces
// map[string]interface{} for mapping nodes, so this mostly normalizes
// nested slices/maps uniformly.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvAll applies ${VAR} environment variable substitution
// recursively to every string value (and map key) in the decoded
// document, mirroring the original system's recursive expandvars pass.
func expandEnvAll(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[expandEnvString(k)] = expandEnvAll(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = expandEnvAll(val)
		}
		return out
	case string:
		return expandEnvString(t)
	default:
		return v
	}
}

func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func mergeHandlers(log logr.Logger, cfg *Config, doc map[string]any, declOrder []string) error {
	section, ok := doc["handlers"]
	if !ok {
		return nil
	}
	m, ok := section.(map[string]any)
	if !ok {
		return newError(KindGeneric, "`handlers` section must be a mapping")
	}
	for _, name := range declOrder {
		rawHandlerCfg, ok := m[name]
		if !ok {
			continue
		}
		if _, dup := cfg.Handlers[name]; dup {
			log.Info("ignoring duplicate handler configuration", "handler", name)
			continue
		}
		hc, err := decodeHandlerConfig(name, rawHandlerCfg)
		if err != nil {
			return err
		}
		cfg.Handlers[name] = hc
		cfg.HandlerOrder = append(cfg.HandlerOrder, name)
	}
	return nil
}

func decodeHandlerConfig(name string, raw any) (model.HandlerConfig, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return model.HandlerConfig{}, newError(KindGeneric, "handler %q config must be a mapping", name)
	}
	hc := model.HandlerConfig{Priority: model.DefaultPriority, Extra: map[string]string{}}
	for k, v := range m {
		switch k {
		case "active":
			b, ok := v.(bool)
			if !ok {
				return hc, newError(KindGeneric, "handler %q field `active` must be a bool", name)
			}
			hc.Active = b
		case "priority":
			p, ok := toFloat(v)
			if !ok {
				return hc, newError(KindGeneric, "handler %q field `priority` must be an int", name)
			}
			hc.Priority = p
		case "url":
			s, ok := v.(string)
			if !ok {
				return hc, newError(KindGeneric, "handler %q field `url` must be a string", name)
			}
			hc.URL = s
		case "workspace_dir":
			s, ok := v.(string)
			if !ok {
				return hc, newError(KindGeneric, "handler %q field `workspace_dir` must be a string", name)
			}
			hc.WorkspaceDir = s
		default:
			if s, ok := v.(string); ok {
				hc.Extra[k] = s
			}
		}
	}
	return hc, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func mergeSyncPoints(log logr.Logger, cfg *Config, doc map[string]any) error {
	section, ok := doc["sync_permissions"]
	if !ok {
		return nil
	}
	m, ok := section.(map[string]any)
	if !ok {
		return newError(KindGeneric, "`sync_permissions` section must be a mapping")
	}
	for id, rawPoint := range m {
		sp, err := decodeSyncPoint(id, rawPoint)
		if err != nil {
			return err
		}
		cfg.SyncPoints = append(cfg.SyncPoints, sp)
	}
	log.V(1).Info("loaded sync points", "count", len(cfg.SyncPoints))
	return nil
}

func decodeSyncPoint(id string, raw any) (SyncPointConfig, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return SyncPointConfig{}, newError(KindGeneric, "sync point %q must be a mapping", id)
	}
	sp := SyncPointConfig{ID: id, Services: map[string]map[string][]model.ResourceSegment{}}

	servicesRaw, ok := m["services"].(map[string]any)
	if !ok {
		return sp, newError(KindGeneric, "sync point %q missing `services` mapping", id)
	}
	for component, resourcesRaw := range servicesRaw {
		resources, ok := resourcesRaw.(map[string]any)
		if !ok {
			return sp, newError(KindGeneric, "sync point %q component %q must map resource keys to segments", id, component)
		}
		segMap := map[string][]model.ResourceSegment{}
		for resKey, segsRaw := range resources {
			segs, ok := segsRaw.([]any)
			if !ok {
				return sp, newError(KindGeneric, "sync point %q resource %q must be a list of segments", id, resKey)
			}
			parsed := make([]model.ResourceSegment, 0, len(segs))
			for _, segRaw := range segs {
				segM, ok := segRaw.(map[string]any)
				if !ok {
					return sp, newError(KindGeneric, "sync point %q resource %q has an invalid segment", id, resKey)
				}
				name, _ := segM["name"].(string)
				typ, _ := segM["type"].(string)
				if name == "" || typ == "" {
					return sp, newError(KindGeneric,
						"sync point %q resource %q segment requires both `name` and `type`", id, resKey)
				}
				parsed = append(parsed, model.ResourceSegment{Name: name, Type: typ})
			}
			segMap[resKey] = parsed
		}
		sp.Services[component] = segMap
	}

	mappingRaw, ok := m["permissions_mapping"].([]any)
	if !ok {
		return sp, newError(KindGeneric, "sync point %q missing `permissions_mapping` list", id)
	}
	for _, ruleRaw := range mappingRaw {
		rule, ok := ruleRaw.(string)
		if !ok {
			return sp, newError(KindGeneric, "sync point %q has a non-string permissions_mapping entry", id)
		}
		if !mappingRegex.MatchString(rule) {
			return sp, newError(KindGeneric, "sync point %q has an invalid mapping rule %q", id, rule)
		}
		sp.PermissionsMapping = append(sp.PermissionsMapping, rule)
	}

	return sp, nil
}

const (
	// Direction arrows recognized in a permissions_mapping rule.
	Bidirectional = "<->"
	RightArrow    = "->"
	LeftArrow     = "<-"
)

var (
	permissionPattern = `[\w-]+`
	permsPattern      = fmt.Sprintf(`(?:%s|\[\s*%s(?:\s*,\s*%s)*\s*\])`, permissionPattern, permissionPattern, permissionPattern)
	directionPattern  = fmt.Sprintf(`(?:%s|%s|%s)`, regexp.QuoteMeta(Bidirectional), regexp.QuoteMeta(LeftArrow), regexp.QuoteMeta(RightArrow))
	mappingRegex = regexp.MustCompile(
		`^(\w+)\s*:\s*(` + permsPattern + `)\s*(` + directionPattern + `)\s*(\w+)\s*:\s*(` + permsPattern + `)$`,
	)
	permissionRegex = regexp.MustCompile(permissionPattern)
	namedTokenRegex = regexp.MustCompile(`^\{\s*(\w+)\s*\}$`)
)

// MappingInfo is the parsed form of one `permissions_mapping` rule.
type MappingInfo struct {
	ResKey1   string
	Perms1    []string
	Direction string
	ResKey2   string
	Perms2    []string
}

// ParseMapping parses a single `resKeyA : perms <dir> resKeyB : perms`
// rule string into its structured components.
func ParseMapping(rule string) (MappingInfo, error) {
	groups := mappingRegex.FindStringSubmatch(rule)
	if groups == nil {
		return MappingInfo{}, newError(KindGeneric, "error parsing mapping `%s`: invalid format", rule)
	}
	return MappingInfo{
		ResKey1:   groups[1],
		Perms1:    permissionRegex.FindAllString(groups[2], -1),
		Direction: groups[3],
		ResKey2:   groups[4],
		Perms2:    permissionRegex.FindAllString(groups[5], -1),
	}, nil
}
