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

package config

import (
	"sort"
	"strings"

	"github.com/ouranosinc/syncbird/internal/model"
)

// resourceInfo summarizes the token usage of one resource_key's segment
// list, computed once per sync-point validation pass.
type resourceInfo struct {
	hasMultiToken bool
	namedTokens   map[string]bool
}

func validateAndGetResourceInfo(resKey string, segments []model.ResourceSegment) (resourceInfo, error) {
	info := resourceInfo{namedTokens: map[string]bool{}}
	for _, seg := range segments {
		switch {
		case seg.Name == model.MultiToken:
			if info.hasMultiToken {
				return info, newError(KindInvalidTokens,
					"invalid config value for resource key %s: only one `%s` token is permitted per resource",
					resKey, model.MultiToken)
			}
			info.hasMultiToken = true
		default:
			if m := namedTokenRegex.FindStringSubmatch(seg.Name); m != nil {
				ident := m[1]
				if info.namedTokens[ident] {
					return info, newError(KindInvalidTokens,
						"invalid config value for resource key %s: named token %s was found in multiple segments "+
							"of the resource path", resKey, ident)
				}
				info.namedTokens[ident] = true
			}
		}
	}
	return info, nil
}

func validateBidirectionalMapping(mapping string, infos map[string]resourceInfo, resKey1, resKey2 string) error {
	i1, i2 := infos[resKey1], infos[resKey2]
	if i1.hasMultiToken != i2.hasMultiToken {
		return newError(KindInvalidTokens,
			"invalid permission mapping `%s`: for a bidirectional mapping, either all mapped resources should "+
				"have `%s` or none should use them", mapping, model.MultiToken)
	}
	if !sameTokenSet(i1.namedTokens, i2.namedTokens) {
		return newError(KindInvalidTokens,
			"invalid permission mapping `%s`: for a bidirectional mapping, both resources should have exactly "+
				"the same named tokens (%s: %v, %s: %v)",
			mapping, resKey1, sortedKeys(i1.namedTokens), resKey2, sortedKeys(i2.namedTokens))
	}
	return nil
}

func validateUnidirectionalMapping(mapping string, src, tgt resourceInfo) error {
	if !src.hasMultiToken && tgt.hasMultiToken {
		return newError(KindInvalidTokens,
			"invalid permission mapping `%s`: for a unidirectional mapping, the source resource should use a "+
				"%s token if the target is using one", mapping, model.MultiToken)
	}
	var missing []string
	for tok := range tgt.namedTokens {
		if !src.namedTokens[tok] {
			missing = append(missing, tok)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return newError(KindInvalidTokens,
			"invalid permission mapping `%s`: for a unidirectional mapping, all named tokens found in the target "+
				"resource should also be found in the source resource, but %v are missing from the source",
			mapping, missing)
	}
	return nil
}

func validateSyncConfig(sp SyncPointConfig) error {
	infos := map[string]resourceInfo{}
	for component, resources := range sp.Services {
		for resKey, segs := range resources {
			if _, dup := infos[resKey]; dup {
				return newError(KindInvalidResourceKey,
					"found duplicate resource key %s in config for sync point %s: resource keys must be unique "+
						"across all components", resKey, sp.ID)
			}
			info, err := validateAndGetResourceInfo(resKey, segs)
			if err != nil {
				return err
			}
			infos[resKey] = info
			_ = component
		}
	}

	for _, rule := range sp.PermissionsMapping {
		parsed, err := ParseMapping(rule)
		if err != nil {
			return err
		}
		for _, resKey := range []string{parsed.ResKey1, parsed.ResKey2} {
			if _, ok := infos[resKey]; !ok {
				return newError(KindInvalidResourceKey,
					"invalid config mapping references resource %s which is not defined in any service of sync "+
						"point %s", resKey, sp.ID)
			}
		}

		switch parsed.Direction {
		case Bidirectional:
			if err := validateBidirectionalMapping(rule, infos, parsed.ResKey1, parsed.ResKey2); err != nil {
				return err
			}
		case RightArrow:
			if err := validateUnidirectionalMapping(rule, infos[parsed.ResKey1], infos[parsed.ResKey2]); err != nil {
				return err
			}
		case LeftArrow:
			if err := validateUnidirectionalMapping(rule, infos[parsed.ResKey2], infos[parsed.ResKey1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func sameTokenSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidateServiceKeys checks that every component name used in a
// sync-point's `services` section is one of the currently active
// component names.
func ValidateServiceKeys(sp SyncPointConfig, active map[string]bool) error {
	var unknown []string
	for component := range sp.Services {
		if !active[component] {
			unknown = append(unknown, component)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return newError(KindInvalidServiceKey,
			"component(s) %s used in sync point %s are not among the active components", strings.Join(unknown, ", "), sp.ID)
	}
	return nil
}
