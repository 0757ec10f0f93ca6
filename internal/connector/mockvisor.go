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

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/alexandremahdhaoui/univor/internal/session"
	"github.com/alexandremahdhaoui/univor/internal/types"
)

// --------------------------------------------------- CONSTRUCTORS ------------------------------------------------- //

// NewMockvisor returns a Connector bound to a mock hypervisor session.
// Multiple connectors may share one session.
func NewMockvisor(s *session.Mockvisor) Connector {
	return &mockvisor{session: s}
}

// --------------------------------------------- CONCRETE IMPLEMENTATION -------------------------------------------- //

type mockvisor struct {
	session *session.Mockvisor
}

func (c *mockvisor) Create(ctx context.Context, config types.VMConfig) (types.VM, error) {
	return c.roundTrip(ctx, http.MethodPost, "/vms", config, http.StatusCreated)
}

func (c *mockvisor) List(ctx context.Context, search string) ([]types.VM, error) {
	path := "/vms"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	resp, err := c.session.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &types.TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var vms []types.VM
	if err := json.NewDecoder(resp.Body).Decode(&vms); err != nil {
		return nil, &types.TransportError{Cause: fmt.Errorf("decoding response: %w", err)}
	}

	return vms, nil
}

func (c *mockvisor) Get(ctx context.Context, id string) (types.VM, error) {
	return c.roundTrip(ctx, http.MethodGet, "/vms/"+url.PathEscape(id), nil, http.StatusOK)
}

func (c *mockvisor) Reconfigure(ctx context.Context, id string, config types.VMConfig) (types.VM, error) {
	// The identifier is immutable. Reject locally before touching the wire.
	if config.ID != id {
		return types.VM{}, &types.ValidationError{Field: "id", Reason: "identifier cannot be changed"}
	}

	return c.roundTrip(ctx, http.MethodPut, "/vms/"+url.PathEscape(id), config, http.StatusOK)
}

func (c *mockvisor) Update(ctx context.Context, id string, patch types.VMConfig) (types.VM, error) {
	if patch.ID != "" && patch.ID != id {
		return types.VM{}, &types.ValidationError{Field: "id", Reason: "identifier cannot be changed"}
	}

	return c.roundTrip(ctx, http.MethodPatch, "/vms/"+url.PathEscape(id), patch, http.StatusOK)
}

func (c *mockvisor) Clone(ctx context.Context, id string, overrides types.VMConfig) (types.VM, error) {
	return c.roundTrip(ctx, http.MethodPost, "/vms/"+url.PathEscape(id)+"/clone", overrides, http.StatusCreated)
}

func (c *mockvisor) Delete(ctx context.Context, id string) error {
	resp, err := c.session.Do(ctx, http.MethodDelete, "/vms/"+url.PathEscape(id), nil)
	if err != nil {
		return &types.TransportError{Cause: err}
	}
	defer resp.Body.Close()

	return checkStatus(resp, http.StatusNoContent)
}

func (c *mockvisor) Transition(ctx context.Context, id string, action types.Action) (types.VM, error) {
	path := "/vms/" + url.PathEscape(id) + "/" + url.PathEscape(string(action))

	return c.roundTrip(ctx, http.MethodPost, path, nil, http.StatusOK)
}

func (c *mockvisor) Status(ctx context.Context) (types.HypervisorStatus, error) {
	resp, err := c.session.Do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return types.HypervisorStatus{}, &types.TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return types.HypervisorStatus{}, err
	}

	var status types.HypervisorStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return types.HypervisorStatus{}, &types.TransportError{Cause: fmt.Errorf("decoding response: %w", err)}
	}

	return status, nil
}

func (c *mockvisor) Describe() types.HypervisorInfo {
	return types.HypervisorInfo{
		Type:    c.session.BackendType(),
		BaseURL: c.session.BaseURL(),
		User:    c.session.User(),
	}
}

// roundTrip performs one request expected to return a VM record.
func (c *mockvisor) roundTrip(
	ctx context.Context,
	method, path string,
	body any,
	want int,
) (types.VM, error) {
	resp, err := c.session.Do(ctx, method, path, body)
	if err != nil {
		return types.VM{}, &types.TransportError{Cause: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, want); err != nil {
		return types.VM{}, err
	}

	var vm types.VM
	if err := json.NewDecoder(resp.Body).Decode(&vm); err != nil {
		return types.VM{}, &types.TransportError{Cause: fmt.Errorf("decoding response: %w", err)}
	}

	return vm, nil
}

// checkStatus translates a non-success response into the error taxonomy.
// A decodable structured body wins over the bare status code; anything the
// taxonomy cannot classify is a transport failure.
func checkStatus(resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var body types.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if domainErr := body.Err(); domainErr != nil {
			return domainErr
		}
	}

	if err := types.ErrFromStatus(resp.StatusCode); err != nil {
		return err
	}

	return &types.TransportError{
		Cause: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw)),
	}
}
