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

package webhookapi

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/ouranosinc/syncbird/internal/apierror"
	"github.com/ouranosinc/syncbird/internal/model"
)

type userWebhookBody struct {
	Event       string `json:"event"`
	UserName    string `json:"user_name"`
	CallbackURL string `json:"callback_url"`
}

type permissionWebhookBody struct {
	Event            string `json:"event"`
	ComponentName    string `json:"component_name"`
	ResourceID       string `json:"resource_id"`
	ResourceFullName string `json:"resource_full_name"`
	Name             string `json:"name"`
	Access           string `json:"access"`
	Scope            string `json:"scope"`
	User             string `json:"user"`
	Group            string `json:"group"`
}

// handleUserWebhook dispatches user lifecycle events to every active
// handler. On a dispatch failure for a "created" event, it best-effort
// notifies the caller-supplied callback_url so the authoritative
// component can mark the user erroneous, but still responds 200 OK
// either way. See DESIGN.md for why this inconsistency is kept as-is.
func (s *Server) handleUserWebhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body userWebhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.KindValidation, "invalid request body: "+err.Error()))
		return
	}
	if body.UserName == "" {
		apierror.WriteJSON(w, r, apierror.New(apierror.KindValidation, "user_name is required").WithParam("user_name"))
		return
	}

	switch body.Event {
	case "created":
		if err := s.dispatcher.UserCreated(body.UserName); err != nil {
			s.log.Error(err, "dispatching user_created failed", "user", body.UserName, "request_id", requestIDFrom(r.Context()))
			if body.CallbackURL != "" {
				s.notifyCallback(body.CallbackURL)
			}
		}
	case "deleted":
		if err := s.dispatcher.UserDeleted(body.UserName); err != nil {
			s.log.Error(err, "dispatching user_deleted failed", "user", body.UserName, "request_id", requestIDFrom(r.Context()))
		}
	default:
		apierror.WriteJSON(w, r, apierror.New(apierror.KindValidation, "event must be \"created\" or \"deleted\"").WithParam("event"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "user event dispatched"})
}

func (s *Server) notifyCallback(callbackURL string) {
	resp, err := s.httpClient.Get(callbackURL)
	if err != nil {
		s.log.Error(err, "failed to notify callback_url", "url", callbackURL)
		return
	}
	defer resp.Body.Close()
}

// handlePermissionWebhook builds a model.Permission from the request
// body and dispatches it to every active handler.
func (s *Server) handlePermissionWebhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body permissionWebhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.KindValidation, "invalid request body: "+err.Error()))
		return
	}

	perm := model.Permission{
		ComponentName:    body.ComponentName,
		ResourceID:       body.ResourceID,
		ResourceFullName: body.ResourceFullName,
		Name:             body.Name,
		Access:           body.Access,
		Scope:            body.Scope,
		User:             body.User,
		Group:            body.Group,
	}
	if err := perm.Validate(); err != nil {
		apierror.WriteJSON(w, r, apierror.New(apierror.KindValidation, err.Error()))
		return
	}

	switch body.Event {
	case "created":
		if err := s.dispatcher.PermissionCreated(perm); err != nil {
			apierror.WriteJSON(w, r, apierror.New(apierror.KindDispatchAggregate, err.Error()))
			return
		}
	case "deleted":
		if err := s.dispatcher.PermissionDeleted(perm); err != nil {
			apierror.WriteJSON(w, r, apierror.New(apierror.KindDispatchAggregate, err.Error()))
			return
		}
	default:
		apierror.WriteJSON(w, r, apierror.New(apierror.KindValidation, "event must be \"created\" or \"deleted\"").WithParam("event"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "permission event dispatched"})
}
