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

package webhookapi_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/go-logr/logr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ouranosinc/syncbird/internal/handler"
	"github.com/ouranosinc/syncbird/internal/model"
	"github.com/ouranosinc/syncbird/internal/webhookapi"
)

type testHandler struct {
	name       string
	userErr    error
	onCreated  []string
}

func (h *testHandler) Name() string      { return h.name }
func (h *testHandler) Priority() float64 { return model.DefaultPriority }
func (h *testHandler) GetResourceID(string) (string, error) { return "", nil }
func (h *testHandler) UserCreated(userName string) error {
	h.onCreated = append(h.onCreated, userName)
	return h.userErr
}
func (h *testHandler) UserDeleted(string) error                 { return nil }
func (h *testHandler) PermissionCreated(model.Permission) error { return nil }
func (h *testHandler) PermissionDeleted(model.Permission) error { return nil }

var _ = Describe("webhook server", func() {
	var (
		srv *httptest.Server
		th  *testHandler
	)

	BeforeEach(func() {
		th = &testHandler{name: "stub"}
		factory := handler.NewFactory(logr.Discard(), handler.Registry{
			"stub": func(name string, cfg model.HandlerConfig) (handler.Handler, error) { return th, nil },
		}, map[string]model.HandlerConfig{
			"stub": {Active: true},
		}, []string{"stub"})
		dispatcher := handler.NewDispatcher(logr.Discard(), factory)
		server := webhookapi.NewServer(logr.Discard(), factory, dispatcher)
		srv = httptest.NewServer(server)
	})

	AfterEach(func() {
		srv.Close()
	})

	It("dispatches a user_created event and returns 200", func() {
		body, _ := json.Marshal(map[string]string{"event": "created", "user_name": "alice"})
		resp, err := http.Post(srv.URL+"/webhooks/users", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(th.onCreated).To(ConsistOf("alice"))
	})

	It("notifies callback_url and still returns 200 when dispatch fails", func() {
		th.userErr = errors.New("boom")
		var calledBack bool
		callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calledBack = true
		}))
		defer callback.Close()

		body, _ := json.Marshal(map[string]string{"event": "created", "user_name": "bob", "callback_url": callback.URL})
		resp, err := http.Post(srv.URL+"/webhooks/users", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Eventually(func() bool { return calledBack }).Should(BeTrue())
	})

	It("rejects a permission webhook missing required fields", func() {
		body, _ := json.Marshal(map[string]string{"event": "created", "component_name": "catalog"})
		resp, err := http.Post(srv.URL+"/webhooks/permissions", "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("lists active handlers", func() {
		resp, err := http.Get(srv.URL + "/handlers")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out []map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		Expect(out).To(HaveLen(1))
		Expect(out[0]["name"]).To(Equal("stub"))
	})

	It("returns 404 for an unknown handler name", func() {
		resp, err := http.Get(srv.URL + "/handlers/nonexistent")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})
})
