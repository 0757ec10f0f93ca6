// Copyright 2024 Alexandre Mahdhaoui
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

// BackendType discriminates concrete hypervisor implementations. Backends
// are selected by this explicit tag, never by probing.
type BackendType string

const (
	// BackendMockvisor is the reference in-memory REST backend.
	BackendMockvisor BackendType = "mock_hypervisor"
)

// HypervisorInfo describes a connector binding, for diagnostics.
type HypervisorInfo struct {
	Type    BackendType `json:"type"`
	BaseURL string      `json:"hostURL"`
	User    string      `json:"user"`
}

// HypervisorStatus is the health report of a hypervisor backend.
type HypervisorStatus struct {
	// Status is "ok", or "shutting_down" once termination was requested.
	Status string `json:"status"`
	// VMCount is the number of VM records the backend currently holds.
	VMCount int `json:"vmCount"`
}
