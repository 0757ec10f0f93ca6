/*
Copyright 2024 Alexandre Mahdhaoui

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

// Package server exposes a VM store as the mock hypervisor's REST surface.
package server

import (
	"net/http"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/alexandremahdhaoui/univor/internal/store"
	"github.com/alexandremahdhaoui/univor/internal/types"
	"github.com/alexandremahdhaoui/univor/internal/util/httputil"
)

// Option configures the server.
type Option func(*server)

// WithShutdownFunc sets the function POST /shutdown triggers. The response
// is written before the function runs.
func WithShutdownFunc(f func()) Option {
	return func(s *server) {
		s.shutdown = f
	}
}

// WithBasicAuth guards every route behind basic authentication.
func WithBasicAuth(user, password string) Option {
	return func(s *server) {
		s.authUser = user
		s.authPassword = password
	}
}

// WithLogger sets the request logger.
func WithLogger(log logr.Logger) Option {
	return func(s *server) {
		s.log = log
	}
}

// New returns the mock hypervisor's HTTP handler over the given store.
func New(st *store.Store, opts ...Option) http.Handler {
	s := &server{
		store:    st,
		shutdown: func() {},
		log:      logr.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /vms", s.createVM)
	mux.HandleFunc("GET /vms", s.listVMs)
	mux.HandleFunc("GET /vms/{id}", s.getVM)
	mux.HandleFunc("PUT /vms/{id}", s.reconfigureVM)
	mux.HandleFunc("PATCH /vms/{id}", s.updateVM)
	mux.HandleFunc("DELETE /vms/{id}", s.deleteVM)
	mux.HandleFunc("POST /vms/{id}/clone", s.cloneVM)
	mux.HandleFunc("POST /vms/{id}/{action}", s.vmLifecycle)
	mux.HandleFunc("GET /status", s.status)
	mux.HandleFunc("POST /shutdown", s.triggerShutdown)

	var handler http.Handler = RequestLogger(Instrument(mux), s.log)

	if s.authUser != "" {
		handler = httputil.BasicAuth(handler, func(user, password string, _ *http.Request) (bool, error) {
			return user == s.authUser && password == s.authPassword, nil
		})
	}

	return handler
}

type server struct {
	store        *store.Store
	shutdown     func()
	shuttingDown atomic.Bool
	log          logr.Logger

	authUser     string
	authPassword string
}

func (s *server) writeErr(w http.ResponseWriter, err error) {
	httputil.WriteJSON(w, types.StatusFor(err), types.NewErrorBody(err))
}

func (s *server) createVM(w http.ResponseWriter, r *http.Request) {
	var config types.VMConfig
	if err := httputil.ReadJSON(r, &config); err != nil {
		s.writeErr(w, &types.ValidationError{Field: "body", Reason: "malformed json"})

		return
	}

	vm, err := s.store.Create(config)
	if err != nil {
		s.writeErr(w, err)

		return
	}

	s.log.Info("created vm", "id", vm.ID, "name", vm.Name)
	httputil.WriteJSON(w, http.StatusCreated, vm)
}

func (s *server) listVMs(w http.ResponseWriter, r *http.Request) {
	vms := s.store.List(r.URL.Query().Get("search"))
	httputil.WriteJSON(w, http.StatusOK, vms)
}

func (s *server) getVM(w http.ResponseWriter, r *http.Request) {
	vm, err := s.store.Get(r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)

		return
	}

	httputil.WriteJSON(w, http.StatusOK, vm)
}

func (s *server) reconfigureVM(w http.ResponseWriter, r *http.Request) {
	var config types.VMConfig
	if err := httputil.ReadJSON(r, &config); err != nil {
		s.writeErr(w, &types.ValidationError{Field: "body", Reason: "malformed json"})

		return
	}

	vm, err := s.store.Reconfigure(r.PathValue("id"), config)
	if err != nil {
		s.writeErr(w, err)

		return
	}

	s.log.Info("reconfigured vm", "id", vm.ID)
	httputil.WriteJSON(w, http.StatusOK, vm)
}

func (s *server) updateVM(w http.ResponseWriter, r *http.Request) {
	var patch types.VMConfig
	if err := httputil.ReadJSON(r, &patch); err != nil {
		s.writeErr(w, &types.ValidationError{Field: "body", Reason: "malformed json"})

		return
	}

	vm, err := s.store.Update(r.PathValue("id"), patch)
	if err != nil {
		s.writeErr(w, err)

		return
	}

	s.log.Info("updated vm", "id", vm.ID)
	httputil.WriteJSON(w, http.StatusOK, vm)
}

func (s *server) deleteVM(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(id); err != nil {
		s.writeErr(w, err)

		return
	}

	s.log.Info("deleted vm", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) cloneVM(w http.ResponseWriter, r *http.Request) {
	var overrides types.VMConfig
	if err := httputil.ReadJSON(r, &overrides); err != nil {
		s.writeErr(w, &types.ValidationError{Field: "body", Reason: "malformed json"})

		return
	}

	id := r.PathValue("id")

	vm, err := s.store.Clone(id, overrides)
	if err != nil {
		s.writeErr(w, err)

		return
	}

	s.log.Info("cloned vm", "source", id, "id", vm.ID, "name", vm.Name)
	httputil.WriteJSON(w, http.StatusCreated, vm)
}

func (s *server) vmLifecycle(w http.ResponseWriter, r *http.Request) {
	action, err := types.ParseAction(r.PathValue("action"))
	if err != nil {
		s.writeErr(w, err)

		return
	}

	id := r.PathValue("id")

	vm, err := s.store.Transition(id, action)
	if err != nil {
		s.writeErr(w, err)

		return
	}

	s.log.Info("vm lifecycle action", "id", id, "action", action, "status", vm.Status)
	httputil.WriteJSON(w, http.StatusOK, vm)
}

func (s *server) status(w http.ResponseWriter, _ *http.Request) {
	state := "ok"
	if s.shuttingDown.Load() {
		state = "shutting_down"
	}

	httputil.WriteJSON(w, http.StatusOK, types.HypervisorStatus{
		Status:  state,
		VMCount: s.store.Count(),
	})
}

func (s *server) triggerShutdown(w http.ResponseWriter, _ *http.Request) {
	s.log.Info("shutdown requested")
	s.shuttingDown.Store(true)

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Server shutting down"})

	// run after the response is written so the caller gets its 200 back.
	go s.shutdown()
}
