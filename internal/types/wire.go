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
	"net/http"
)

// Error kinds as carried in HTTP error bodies. The connector maps a body
// back to the taxonomy by kind, falling back to the bare status code for
// backends that do not emit structured bodies.
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindConflict   = "conflict"
	KindState      = "state"
)

// ErrorBody is the JSON shape of a domain error on the wire.
type ErrorBody struct {
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	Reason        string `json:"reason,omitempty"`
	ID            string `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	Action        Action `json:"action,omitempty"`
	CurrentStatus Status `json:"currentStatus,omitempty"`
}

// NewErrorBody encodes a taxonomy error. Errors outside the four store-level
// kinds encode as a bare message with no kind; the peer will classify them
// by status code.
func NewErrorBody(err error) ErrorBody {
	body := ErrorBody{Message: err.Error()}

	var (
		validation *ValidationError
		notFound   *NotFoundError
		conflict   *ConflictError
		state      *StateError
	)

	switch {
	case errors.As(err, &validation):
		body.Kind = KindValidation
		body.Field = validation.Field
		body.Reason = validation.Reason
	case errors.As(err, &notFound):
		body.Kind = KindNotFound
		body.ID = notFound.ID
	case errors.As(err, &conflict):
		body.Kind = KindConflict
		body.ID = conflict.ID
		body.Name = conflict.Name
	case errors.As(err, &state):
		body.Kind = KindState
		body.Action = state.Action
		body.CurrentStatus = state.CurrentStatus
	}

	return body
}

// Err decodes the body back into a taxonomy error, or nil for an empty body.
func (b ErrorBody) Err() error {
	switch b.Kind {
	case KindValidation:
		return &ValidationError{Field: b.Field, Reason: b.Reason}
	case KindNotFound:
		return &NotFoundError{ID: b.ID}
	case KindConflict:
		return &ConflictError{ID: b.ID, Name: b.Name}
	case KindState:
		return &StateError{Action: b.Action, CurrentStatus: b.CurrentStatus}
	default:
		return nil
	}
}

// StatusFor maps a domain error to its HTTP status code. An unknown action
// is a 400, every other validation failure a 422.
func StatusFor(err error) int {
	var validation *ValidationError

	switch {
	case errors.As(err, &validation):
		if validation.Field == "action" {
			return http.StatusBadRequest
		}

		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrFromStatus maps a bare HTTP status code to the taxonomy, for error
// responses without a decodable body.
func ErrFromStatus(code int) error {
	switch code {
	case http.StatusNotFound:
		return &NotFoundError{}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Reason: http.StatusText(code)}
	case http.StatusConflict:
		return &ConflictError{}
	default:
		return nil
	}
}
