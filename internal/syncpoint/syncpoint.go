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

// Package syncpoint implements the permission-propagation core: given a
// permission event observed on one component's resource, it computes and
// dispatches the equivalent permissions on every other component that,
// by configuration, shares that resource.
package syncpoint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ouranosinc/syncbird/internal/config"
	"github.com/ouranosinc/syncbird/internal/model"
)

// TargetSegment is one segment of a computed target resource path. Only
// the leaf segment of a path carries Permission/User/Group.
type TargetSegment struct {
	ResourceName string
	ResourceType string
	Permission   string
	Access       string
	User         string
	Group        string
}

// PermOperation applies a computed target permission path against the
// owning component, e.g. "create this permission" or "delete this
// permission".
type PermOperation func(targetComponent string, segments []TargetSegment) error

// AmbiguityError reports that two resource keys of equal literal length
// matched the same live resource path; the engine never guesses in this
// case.
type AmbiguityError struct {
	Component string
	Path      string
	Keys      []string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("ambiguous resource match for component %s path %s: candidates %v", e.Component, e.Path, e.Keys)
}

// NoMatchError reports that no configured resource_key matched the live
// resource path.
type NoMatchError struct {
	Component string
	Path      string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no matching resource_key for component %s path %s", e.Component, e.Path)
}

// SuffixMismatchError reports that a target's tokenized suffix could not
// bind against the source path's tokenized suffix.
type SuffixMismatchError struct {
	Target string
	Suffix string
}

func (e *SuffixMismatchError) Error() string {
	return fmt.Sprintf("tokenized suffix of resource %s does not match source suffix %q", e.Target, e.Suffix)
}

type mappingRule struct {
	resKey1 string
	perms1  []string
	dir     string
	resKey2 string
	perms2  []string
}

// SyncPoint is one compiled `sync_permissions` entry.
type SyncPoint struct {
	id                    string
	resourceKeySegments   map[string][]model.ResourceSegment
	resourceKeyComponent  map[string]string
	componentResourceKeys map[string]map[string]bool
	mappings              []mappingRule
}

// Compile builds a SyncPoint from its validated configuration form.
func Compile(cfg config.SyncPointConfig) (*SyncPoint, error) {
	sp := &SyncPoint{
		id:                    cfg.ID,
		resourceKeySegments:   map[string][]model.ResourceSegment{},
		resourceKeyComponent:  map[string]string{},
		componentResourceKeys: map[string]map[string]bool{},
	}
	for component, resources := range cfg.Services {
		set := map[string]bool{}
		for resKey, segs := range resources {
			sp.resourceKeySegments[resKey] = segs
			sp.resourceKeyComponent[resKey] = component
			set[resKey] = true
		}
		sp.componentResourceKeys[component] = set
	}
	for _, rule := range cfg.PermissionsMapping {
		info, err := config.ParseMapping(rule)
		if err != nil {
			return nil, err
		}
		sp.mappings = append(sp.mappings, mappingRule{
			resKey1: info.ResKey1, perms1: info.Perms1,
			dir:     info.Direction,
			resKey2: info.ResKey2, perms2: info.Perms2,
		})
	}
	return sp, nil
}

// ID returns the configured sync-point identifier.
func (sp *SyncPoint) ID() string { return sp.id }

// HasComponent reports whether this sync point declares any resource
// key for the given component.
func (sp *SyncPoint) HasComponent(component string) bool {
	return len(sp.componentResourceKeys[component]) > 0
}

// findMatchingResource implements §4.3 Step 1: identify the
// resource_key of `component` whose segment regex matches the live
// name:type path, breaking ties on literal-segment count and rejecting
// ambiguous or absent matches.
func (sp *SyncPoint) findMatchingResource(component string, path []model.ResourcePathSegment) (string, int, error) {
	pathStr := nameTypePath(path)

	bestLen := -1
	var bestKeys []string

	for resKey := range sp.componentResourceKeys[component] {
		segs := sp.resourceKeySegments[resKey]
		pattern, literalLen := buildResourceRegex(segs)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", 0, fmt.Errorf("invalid resource pattern for %s: %w", resKey, err)
		}
		if re.MatchString(pathStr) {
			switch {
			case literalLen > bestLen:
				bestLen = literalLen
				bestKeys = []string{resKey}
			case literalLen == bestLen:
				bestKeys = append(bestKeys, resKey)
			}
		}
	}

	switch len(bestKeys) {
	case 0:
		return "", 0, &NoMatchError{Component: component, Path: pathStr}
	case 1:
		return bestKeys[0], bestLen, nil
	default:
		return "", 0, &AmbiguityError{Component: component, Path: pathStr, Keys: bestKeys}
	}
}

func nameTypePath(path []model.ResourcePathSegment) string {
	var b strings.Builder
	for _, seg := range path {
		b.WriteByte('/')
		b.WriteString(seg.ResourceName)
		b.WriteByte(':')
		b.WriteString(seg.ResourceType)
	}
	return b.String()
}

// buildResourceRegex synthesizes the anchored regex for a configured
// resource_key's segment list and returns the count of literal segments
// (the match length used for tie-breaking).
func buildResourceRegex(segs []model.ResourceSegment) (string, int) {
	var b strings.Builder
	b.WriteByte('^')
	literalLen := 0
	for _, seg := range segs {
		switch seg.Name {
		case model.SingleToken:
			b.WriteString(`/[^/:]+:`)
			b.WriteString(regexp.QuoteMeta(seg.Type))
		case model.MultiToken:
			b.WriteString(`(/[^/:]+:`)
			b.WriteString(regexp.QuoteMeta(seg.Type))
			b.WriteString(`)*`)
		default:
			if namedTokenPattern.MatchString(seg.Name) {
				b.WriteString(`/[^/:]+:`)
				b.WriteString(regexp.QuoteMeta(seg.Type))
			} else {
				b.WriteByte('/')
				b.WriteString(regexp.QuoteMeta(seg.Name))
				b.WriteByte(':')
				b.WriteString(regexp.QuoteMeta(seg.Type))
				literalLen++
			}
		}
	}
	b.WriteByte('$')
	return b.String(), literalLen
}

var namedTokenPattern = regexp.MustCompile(`^\{\s*\w+\s*\}$`)

// targetsFor implements §4.3 Step 2: enumerate (target_resource_key,
// target_permission_name) pairs for a source resource_key/permission
// name, in rule and per-side declared order, de-duplicated only on
// exact (key, permission) repeats.
func (sp *SyncPoint) targetsFor(srcResKey, permName string) []struct{ resKey, perm string } {
	type pair struct{ resKey, perm string }
	seen := map[pair]bool{}
	var out []struct{ resKey, perm string }

	emit := func(resKey string, perms []string) {
		if resKey == srcResKey {
			return
		}
		for _, p := range perms {
			key := pair{resKey, p}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, struct{ resKey, perm string }{resKey, p})
		}
	}

	for _, rule := range sp.mappings {
		switch rule.dir {
		case config.Bidirectional:
			if rule.resKey1 == srcResKey && contains(rule.perms1, permName) {
				emit(rule.resKey2, rule.perms2)
			}
			if rule.resKey2 == srcResKey && contains(rule.perms2, permName) {
				emit(rule.resKey1, rule.perms1)
			}
		case config.RightArrow:
			if rule.resKey1 == srcResKey && contains(rule.perms1, permName) {
				emit(rule.resKey2, rule.perms2)
			}
		case config.LeftArrow:
			if rule.resKey2 == srcResKey && contains(rule.perms2, permName) {
				emit(rule.resKey1, rule.perms1)
			}
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// buildTargetPath implements §4.3 Step 3: split the target's segment
// list into a literal prefix and a tokenized suffix, bind the suffix
// against srcSuffix (the source tree from the index of the source
// key's first token onward, as sliced by Sync) and emit the resulting
// ordered segment list.
func buildTargetPath(targetSegs []model.ResourceSegment, srcSuffix []model.ResourcePathSegment) ([]TargetSegment, error) {
	var out []TargetSegment
	var suffixSegs []model.ResourceSegment
	for i, seg := range targetSegs {
		if isToken(seg.Name) {
			suffixSegs = targetSegs[i:]
			break
		}
		out = append(out, TargetSegment{ResourceName: seg.Name, ResourceType: seg.Type})
	}

	if len(suffixSegs) == 0 {
		return out, nil
	}

	var pattern strings.Builder
	pattern.WriteByte('^')
	for _, seg := range suffixSegs {
		switch seg.Name {
		case model.SingleToken:
			pattern.WriteString(`(/[^/]+)`)
		case model.MultiToken:
			pattern.WriteString(`((?:/[^/]+)*)`)
		default:
			// Named tokens behave like SINGLE_TOKEN for path binding purposes.
			pattern.WriteString(`(/[^/]+)`)
		}
	}
	pattern.WriteByte('$')
	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, err
	}

	var srcParts strings.Builder
	for _, seg := range srcSuffix {
		srcParts.WriteByte('/')
		srcParts.WriteString(seg.ResourceName)
	}

	groups := re.FindStringSubmatch(srcParts.String())
	if groups == nil {
		return nil, &SuffixMismatchError{Target: fmt.Sprint(suffixSegs), Suffix: srcParts.String()}
	}
	matches := groups[1:]
	if len(matches) != len(suffixSegs) {
		return nil, fmt.Errorf("matched %d groups but expected %d tokenized target segments", len(matches), len(suffixSegs))
	}

	for i, suffixSeg := range suffixSegs {
		for _, part := range strings.Split(matches[i], "/") {
			if part == "" {
				continue
			}
			out = append(out, TargetSegment{ResourceName: part, ResourceType: suffixSeg.Type})
		}
	}
	return out, nil
}

func isToken(name string) bool {
	return name == model.SingleToken || name == model.MultiToken || namedTokenPattern.MatchString(name)
}

// Sync implements §4.3 end to end: given the permission event and the
// live resource tree it was observed on, compute and invoke perm_operation
// for every target this sync point declares.
func (sp *SyncPoint) Sync(perm model.Permission, sourceTree []model.ResourcePathSegment, op PermOperation) error {
	srcResKey, _, err := sp.findMatchingResource(perm.ComponentName, sourceTree)
	if err != nil {
		return err
	}
	srcSegs := sp.resourceKeySegments[srcResKey]
	srcSuffixIdx := len(srcSegs)
	for i, seg := range srcSegs {
		if isToken(seg.Name) {
			srcSuffixIdx = i
			break
		}
	}

	for _, target := range sp.targetsFor(srcResKey, perm.Name) {
		targetComponent := sp.resourceKeyComponent[target.resKey]
		targetSegs := sp.resourceKeySegments[target.resKey]

		segments, err := buildTargetPath(targetSegs, sourceTree[srcSuffixIdx:])
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			return fmt.Errorf("resource key %s produced an empty target path", target.resKey)
		}

		leaf := &segments[len(segments)-1]
		leaf.Permission = target.perm
		leaf.Access = perm.Access
		leaf.User = perm.User
		leaf.Group = perm.Group

		if err := op(targetComponent, segments); err != nil {
			return fmt.Errorf("applying synced permission on %s: %w", targetComponent, err)
		}
	}
	return nil
}
