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

package handler

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouranosinc/syncbird/internal/model"
)

type stubHandler struct {
	name      string
	priority  float64
	failUser  error
	createLog *[]string
}

func (s *stubHandler) Name() string     { return s.name }
func (s *stubHandler) Priority() float64 { return s.priority }
func (s *stubHandler) GetResourceID(string) (string, error) { return "", nil }
func (s *stubHandler) UserCreated(userName string) error {
	*s.createLog = append(*s.createLog, s.name)
	return s.failUser
}
func (s *stubHandler) UserDeleted(string) error                      { return nil }
func (s *stubHandler) PermissionCreated(model.Permission) error      { return nil }
func (s *stubHandler) PermissionDeleted(model.Permission) error      { return nil }

func TestDispatcher_PriorityOrderingAndAggregation(t *testing.T) {
	var calls []string
	h1 := &stubHandler{name: "H1", priority: 2, createLog: &calls}
	h2 := &stubHandler{name: "H2", priority: 1, createLog: &calls, failUser: errors.New("boom")}
	h3 := &stubHandler{name: "H3", priority: model.DefaultPriority, createLog: &calls}

	factory := NewFactory(logr.Discard(), Registry{
		"H1": func(string, model.HandlerConfig) (Handler, error) { return h1, nil },
		"H2": func(string, model.HandlerConfig) (Handler, error) { return h2, nil },
		"H3": func(string, model.HandlerConfig) (Handler, error) { return h3, nil },
	}, map[string]model.HandlerConfig{
		"H1": {Active: true, Priority: 2},
		"H2": {Active: true, Priority: 1},
		"H3": {Active: true, Priority: model.DefaultPriority},
	}, []string{"H1", "H2", "H3"})

	dispatcher := NewDispatcher(logr.Discard(), factory)
	err := dispatcher.UserCreated("u")

	require.Error(t, err)
	var agg *AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures, 1)
	assert.Equal(t, "H2", agg.Failures[0].Handler)

	assert.Equal(t, []string{"H2", "H1", "H3"}, calls)
}

func TestFactory_InactiveHandlerSkipped(t *testing.T) {
	factory := NewFactory(logr.Discard(), Registry{
		"H1": func(string, model.HandlerConfig) (Handler, error) {
			t.Fatal("constructor should not run for an inactive handler")
			return nil, nil
		},
	}, map[string]model.HandlerConfig{
		"H1": {Active: false},
	}, []string{"H1"})

	handlers, err := factory.ActiveHandlers()
	require.NoError(t, err)
	assert.Empty(t, handlers)
}

func TestFactory_ConstructionFailureIsFatalForThatHandler(t *testing.T) {
	factory := NewFactory(logr.Discard(), Registry{
		"H1": func(name string, cfg model.HandlerConfig) (Handler, error) {
			return nil, &ConfigError{Handler: name, Param: RequiredURL}
		},
	}, map[string]model.HandlerConfig{
		"H1": {Active: true},
	}, []string{"H1"})

	_, err := factory.ActiveHandlers()
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
