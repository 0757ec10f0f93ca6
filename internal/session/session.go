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

// Package session manages authenticated channels to hypervisor backends and
// the process-wide registry that caches one session per (host, user) pair.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexandremahdhaoui/univor/internal/types"
)

// --------------------------------------------------- INTERFACES --------------------------------------------------- //

// Session is one authenticated channel to a hypervisor backend. Sessions are
// owned by the Registry entry they live in; connectors hold a non-owning
// reference.
type Session interface {
	// BackendType returns the backend discriminant of this session.
	BackendType() types.BackendType
	// BaseURL returns the backend's base address.
	BaseURL() string
	// User returns the authenticated user.
	User() string
	// ID returns the unique session identifier.
	ID() string
	// Connect establishes the session. A failed connect leaves the session
	// unusable; it is the registry's job not to cache it.
	Connect(ctx context.Context) error
	// IsAlive probes the backend. A dead session is not evicted from the
	// registry; callers needing liveness must probe explicitly.
	IsAlive(ctx context.Context) bool
	// Disconnect tears the channel down. Sessions are never disconnected
	// implicitly, only by an explicit teardown.
	Disconnect() error
}

// --------------------------------------------------- CONSTRUCTORS ------------------------------------------------- //

// NewMockvisor returns a session for the mock hypervisor's REST backend.
// hostURL must include the scheme and optionally a port, e.g.
// "http://127.0.0.1:8000".
func NewMockvisor(hostURL, user, password string) *Mockvisor {
	return &Mockvisor{
		baseURL:  strings.TrimRight(hostURL, "/"),
		user:     user,
		password: password,
		id:       uuid.NewString(),
		client:   &http.Client{},
	}
}

// --------------------------------------------- CONCRETE IMPLEMENTATION -------------------------------------------- //

// Mockvisor is the reference Session implementation, speaking JSON over
// HTTP with basic authentication.
type Mockvisor struct {
	baseURL  string
	user     string
	password string
	id       string
	client   *http.Client
}

func (s *Mockvisor) BackendType() types.BackendType { return types.BackendMockvisor }

func (s *Mockvisor) BaseURL() string { return s.baseURL }

func (s *Mockvisor) User() string { return s.user }

func (s *Mockvisor) ID() string { return s.id }

// Connect verifies the backend is reachable. The mock hypervisor has no
// token handshake, so connecting is a liveness probe.
func (s *Mockvisor) Connect(ctx context.Context) error {
	if !s.IsAlive(ctx) {
		return &types.ConnectionError{
			Host:  s.baseURL,
			User:  s.user,
			Cause: fmt.Errorf("cannot connect to hypervisor at %s", s.baseURL),
		}
	}

	return nil
}

// IsAlive probes GET /status with a short timeout.
func (s *Mockvisor) IsAlive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := s.Do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Disconnect drops idle connections. Nothing to revoke on the backend side.
func (s *Mockvisor) Disconnect() error {
	s.client.CloseIdleConnections()

	return nil
}

// Do performs one HTTP request against the backend, with basic auth and an
// optional JSON body. It is backend-specific and deliberately not part of
// the Session contract.
func (s *Mockvisor) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}

		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	url := s.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.SetBasicAuth(s.user, s.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.client.Do(req)
}
