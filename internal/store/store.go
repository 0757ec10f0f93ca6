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

// Package store holds the authoritative VM collection of one hypervisor
// instance. It owns identifier allocation, name uniqueness and lifecycle
// transition validation. The collection is purely in memory and lives for
// the process's duration.
package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/alexandremahdhaoui/univor/internal/types"
)

// Options configures store policies.
type Options struct {
	// AllowDuplicateNames disables name-uniqueness enforcement. The default
	// (false) rejects duplicate names with a ConflictError.
	AllowDuplicateNames bool
}

// Store is an identity-keyed VM collection safe for concurrent use. All
// mutation goes through Store operations; records are copied in and out so
// callers never alias store memory.
type Store struct {
	mu   sync.Mutex
	vms  map[string]types.VM
	opts Options
}

// New returns an empty Store.
func New(opts Options) *Store {
	return &Store{
		vms:  make(map[string]types.VM),
		opts: opts,
	}
}

// Create validates the config, allocates an identifier and inserts a new
// record with status "stopped".
func (s *Store) Create(config types.VMConfig) (types.VM, error) {
	if !config.ValidName() {
		return types.VM{}, &types.ValidationError{Field: "name", Reason: "missing or empty"}
	}

	if err := config.Validate(); err != nil {
		return types.VM{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNameFree(*config.Name, ""); err != nil {
		return types.VM{}, err
	}

	id := config.ID
	if id == "" {
		id = s.nextID()
	} else if _, taken := s.vms[id]; taken {
		// A caller-supplied id never overwrites an existing record.
		return types.VM{}, &types.ConflictError{ID: id}
	}

	vm := types.VM{
		ID:     id,
		Name:   *config.Name,
		Status: types.StatusStopped,
		Tags:   config.Tags,
	}
	if config.CPU != nil {
		vm.CPU = *config.CPU
	}
	if config.Memory != nil {
		vm.Memory = *config.Memory
	}

	s.vms[id] = vm.Copy()

	return vm, nil
}

// List returns all records, or only those whose name contains the search
// substring. Order is not part of the contract; ids are returned sorted for
// stable output.
func (s *Store) List(search string) []types.VM {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.vms))
	for id, vm := range s.vms {
		if search == "" || strings.Contains(vm.Name, search) {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)

	out := make([]types.VM, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.vms[id].Copy())
	}

	return out
}

// Get returns the record for id.
func (s *Store) Get(id string) (types.VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vm, ok := s.vms[id]
	if !ok {
		return types.VM{}, &types.NotFoundError{ID: id}
	}

	return vm.Copy(), nil
}

// Reconfigure replaces every field of the record except its identifier and
// status. The config's identifier must equal id.
func (s *Store) Reconfigure(id string, config types.VMConfig) (types.VM, error) {
	if config.ID != id {
		return types.VM{}, &types.ValidationError{Field: "id", Reason: "identifier cannot be changed"}
	}

	if !config.ValidName() {
		return types.VM{}, &types.ValidationError{Field: "name", Reason: "missing or empty"}
	}

	if err := config.Validate(); err != nil {
		return types.VM{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vm, ok := s.vms[id]
	if !ok {
		return types.VM{}, &types.NotFoundError{ID: id}
	}

	if err := s.checkNameFree(*config.Name, id); err != nil {
		return types.VM{}, err
	}

	next := types.VM{
		ID:     vm.ID,
		Name:   *config.Name,
		Status: vm.Status,
		Tags:   config.Tags,
	}
	if config.CPU != nil {
		next.CPU = *config.CPU
	}
	if config.Memory != nil {
		next.Memory = *config.Memory
	}

	s.vms[id] = next.Copy()

	return next, nil
}

// Update merges only the fields present in patch into the record. The patch
// identifier, when present, must equal id.
func (s *Store) Update(id string, patch types.VMConfig) (types.VM, error) {
	if patch.ID != "" && patch.ID != id {
		return types.VM{}, &types.ValidationError{Field: "id", Reason: "identifier cannot be changed"}
	}

	if patch.Name != nil && !patch.ValidName() {
		return types.VM{}, &types.ValidationError{Field: "name", Reason: "missing or empty"}
	}

	if err := patch.Validate(); err != nil {
		return types.VM{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vm, ok := s.vms[id]
	if !ok {
		return types.VM{}, &types.NotFoundError{ID: id}
	}

	if patch.Name != nil {
		if err := s.checkNameFree(*patch.Name, id); err != nil {
			return types.VM{}, err
		}

		vm.Name = *patch.Name
	}
	if patch.CPU != nil {
		vm.CPU = *patch.CPU
	}
	if patch.Memory != nil {
		vm.Memory = *patch.Memory
	}
	if patch.Tags != nil {
		vm.Tags = patch.Tags
	}

	s.vms[id] = vm.Copy()

	return vm, nil
}

// Clone copies every field of the source record except identifier, name and
// status, applies overrides on top, and inserts the copy as a fresh stopped
// record. The overrides must carry a valid name.
func (s *Store) Clone(id string, overrides types.VMConfig) (types.VM, error) {
	if err := overrides.Validate(); err != nil {
		return types.VM{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.vms[id]
	if !ok {
		return types.VM{}, &types.NotFoundError{ID: id}
	}

	if !overrides.ValidName() {
		return types.VM{}, &types.ValidationError{Field: "name", Reason: "missing or empty"}
	}

	if err := s.checkNameFree(*overrides.Name, ""); err != nil {
		return types.VM{}, err
	}

	clone := src.Copy()
	clone.ID = s.nextID()
	clone.Name = *overrides.Name
	clone.Status = types.StatusStopped

	if overrides.CPU != nil {
		clone.CPU = *overrides.CPU
	}
	if overrides.Memory != nil {
		clone.Memory = *overrides.Memory
	}
	if overrides.Tags != nil {
		clone.Tags = overrides.Tags
	}

	s.vms[clone.ID] = clone.Copy()

	return clone, nil
}

// Delete removes the record for id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vms[id]; !ok {
		return &types.NotFoundError{ID: id}
	}

	delete(s.vms, id)

	return nil
}

// Transition applies a lifecycle action to the record for id. The status
// check and the mutation happen under the same lock acquisition, so two
// racing transitions never both observe the pre-transition status.
func (s *Store) Transition(id string, action types.Action) (types.VM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vm, ok := s.vms[id]
	if !ok {
		return types.VM{}, &types.NotFoundError{ID: id}
	}

	next, err := types.NextStatus(vm.Status, action)
	if err != nil {
		return types.VM{}, err
	}

	vm.Status = next
	s.vms[id] = vm

	return vm.Copy(), nil
}

// Count returns the number of records currently held.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.vms)
}

// nextID returns the lexicographically-next unused VM<n> label, n starting
// at 1. Callers must hold s.mu.
func (s *Store) nextID() string {
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("VM%d", i)
		if _, taken := s.vms[candidate]; !taken {
			return candidate
		}
	}
}

// checkNameFree enforces the name-uniqueness policy. exceptID exempts the
// record being renamed. Callers must hold s.mu.
func (s *Store) checkNameFree(name, exceptID string) error {
	if s.opts.AllowDuplicateNames {
		return nil
	}

	for id, vm := range s.vms {
		if id != exceptID && vm.Name == name {
			return &types.ConflictError{Name: name}
		}
	}

	return nil
}
