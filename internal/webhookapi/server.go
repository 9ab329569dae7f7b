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

// Package webhookapi exposes the inbound HTTP shell: user and
// permission webhooks, handler introspection, and version/health
// metadata.
package webhookapi

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/julienschmidt/httprouter"

	"github.com/ouranosinc/syncbird/internal/apierror"
	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/metrics"
)

// Version is the module's reported build version. Overridden at link
// time where the build system sets it.
var Version = "dev"

// Server is the HTTP shell described by the webhook route table. It
// holds no mutable package-level state; every dependency arrives
// through NewServer.
type Server struct {
	log        logr.Logger
	factory    *handler.Factory
	dispatcher *handler.Dispatcher
	httpClient *http.Client
	router     *httprouter.Router
	handler    http.Handler
	metrics    *metrics.Metrics
}

// SetMetrics attaches a Metrics instance the server records webhook
// request durations against. Optional: a Server with no Metrics set
// simply skips recording.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// NewServer wires the webhook routes against factory and dispatcher.
func NewServer(log logr.Logger, factory *handler.Factory, dispatcher *handler.Dispatcher) *Server {
	s := &Server{
		log:        log,
		factory:    factory,
		dispatcher: dispatcher,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	s.router = httprouter.New()
	s.router.POST("/webhooks/users", s.handleUserWebhook)
	s.router.POST("/webhooks/permissions", s.handlePermissionWebhook)
	s.router.GET("/handlers", s.handleListHandlers)
	s.router.GET("/handlers/:name", s.handleGetHandler)
	s.router.GET("/version", s.handleVersion)
	s.router.GET("/", s.handleRoot)
	s.handler = withRequestID(s.router)
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		s.handler.ServeHTTP(w, r)
		return
	}
	start := time.Now()
	s.handler.ServeHTTP(w, r)
	s.metrics.WebhookRequestDuration.Record(r.Context(), time.Since(start).Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "syncbird",
		"version": Version,
	})
}

func (s *Server) handleListHandlers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	handlers, err := s.factory.ActiveHandlers()
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.KindRemote, err.Error()))
		return
	}
	out := make([]handlerInfo, 0, len(handlers))
	for _, h := range handlers {
		out = append(out, handlerInfo{Name: h.Name(), Active: true, Priority: h.Priority()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	h, err := s.factory.Get(name)
	if err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.KindRemote, err.Error()))
		return
	}
	if h == nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.KindNotFound, "no such handler: "+name).WithParam("name"))
		return
	}
	writeJSON(w, http.StatusOK, handlerInfo{Name: h.Name(), Active: true, Priority: h.Priority()})
}

// handlerInfo is the introspection payload shape for /handlers and
// /handlers/{name}.
type handlerInfo struct {
	Name     string  `json:"name"`
	Active   bool    `json:"active"`
	Priority float64 `json:"priority"`
}

// MarshalJSON renders an unset (model.DefaultPriority, +Inf) priority as
// JSON null rather than letting encoding/json fail on a non-finite
// float: json.Marshal returns an error for +Inf/-Inf/NaN, and that error
// surfaces after writeJSON has already sent the response's status line,
// turning /handlers and /handlers/{name} into a 200 with an empty body
// for any handler that omits priority — the documented default.
func (h handlerInfo) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name     string   `json:"name"`
		Active   bool     `json:"active"`
		Priority *float64 `json:"priority"`
	}
	a := alias{Name: h.Name, Active: h.Active}
	if !math.IsInf(h.Priority, 0) && !math.IsNaN(h.Priority) {
		a.Priority = &h.Priority
	}
	return json.Marshal(a)
}
