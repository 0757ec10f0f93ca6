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

import (
	"errors"
	"fmt"
)

// Sentinel targets for errors.Is. Every taxonomy error unwraps onto exactly
// one of these.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrState              = errors.New("illegal lifecycle transition")
	ErrTransport          = errors.New("transport failure")
	ErrConnection         = errors.New("connection failed")
	ErrUnsupportedBackend = errors.New("unsupported backend type")
)

// ValidationError reports a payload field with a bad shape or value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: field %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a VM identifier with no record behind it.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("vm %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a uniqueness violation, either on an identifier or
// on a name.
type ConflictError struct {
	ID   string
	Name string
}

func (e *ConflictError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("vm with name %q already exists", e.Name)
	}

	return fmt.Sprintf("vm with id %q already exists", e.ID)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StateError reports a lifecycle action attempted from a status it is not
// allowed from. The record's status is unchanged.
type StateError struct {
	Action        Action
	CurrentStatus Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s a vm in status %q", e.Action, e.CurrentStatus)
}

func (e *StateError) Unwrap() error { return ErrState }

// TransportError wraps a network or protocol level failure: backend
// unreachable, timeout, malformed response. The failed call was attempted
// exactly once.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Cause)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Cause} }

// ConnectionError reports a failed session establishment.
type ConnectionError struct {
	Host  string
	User  string
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to hypervisor at %s as %q: %v", e.Host, e.User, e.Cause)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Cause} }

// UnsupportedBackendError reports a backend type no session factory is
// registered for.
type UnsupportedBackendError struct {
	BackendType BackendType
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("unsupported hypervisor type: %q", e.BackendType)
}

func (e *UnsupportedBackendError) Unwrap() error { return ErrUnsupportedBackend }
