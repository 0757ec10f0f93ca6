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

// Package connector defines the backend-agnostic surface every hypervisor
// implementation exposes, and the reference implementation speaking to the
// mock hypervisor over REST.
package connector

import (
	"context"

	"github.com/alexandremahdhaoui/univor/internal/types"
)

// --------------------------------------------------- INTERFACES --------------------------------------------------- //

// Connector is the bound ability to operate on VMs within one hypervisor
// reached via one session. Implementations forward each call to their
// backend and return the authoritative post-mutation record; they never
// apply optimistic local updates and never retry.
type Connector interface {
	// Create creates a VM. The config must carry a non-empty name.
	Create(ctx context.Context, config types.VMConfig) (types.VM, error)
	// List returns all VMs, or those whose name contains search.
	List(ctx context.Context, search string) ([]types.VM, error)
	// Get returns the VM for id.
	Get(ctx context.Context, id string) (types.VM, error)
	// Reconfigure replaces the whole record; config's identifier must equal id.
	Reconfigure(ctx context.Context, id string, config types.VMConfig) (types.VM, error)
	// Update merges only the fields present in patch.
	Update(ctx context.Context, id string, patch types.VMConfig) (types.VM, error)
	// Clone copies the VM under a fresh identifier; overrides must carry a name.
	Clone(ctx context.Context, id string, overrides types.VMConfig) (types.VM, error)
	// Delete removes the VM.
	Delete(ctx context.Context, id string) error
	// Transition applies a lifecycle action and returns the updated record.
	Transition(ctx context.Context, id string, action types.Action) (types.VM, error)
	// Status reports the backend's health and VM count.
	Status(ctx context.Context) (types.HypervisorStatus, error)
	// Describe returns the backend binding, for diagnostics.
	Describe() types.HypervisorInfo
}
