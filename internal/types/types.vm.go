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
	"strconv"
	"strings"
)

// ----------------------------------------------------- STATUS ----------------------------------------------------- //

// Status is the lifecycle state of a VM.
type Status string

const (
	// StatusStopped is the initial status of every VM.
	StatusStopped Status = "stopped"
	// StatusRunning means the VM is executing.
	StatusRunning Status = "running"
	// StatusPaused means the VM is suspended but not powered off.
	StatusPaused Status = "paused"
)

// ----------------------------------------------------- ACTION ----------------------------------------------------- //

// Action is a lifecycle action applied to a VM. Actions are the only way a
// VM's status ever changes.
type Action string

const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// ParseAction validates a wire-level action string. An unknown action is a
// validation failure, not a state error.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionStop, ActionPause, ActionResume:
		return a, nil
	default:
		return "", &ValidationError{Field: "action", Reason: "unknown action " + strconv.Quote(s)}
	}
}

// transitions maps an action to its allowed source statuses and the
// resulting status. The machine is cyclic: there is no terminal state.
var transitions = map[Action]struct {
	from   []Status
	result Status
}{
	ActionStart:  {from: []Status{StatusStopped, StatusPaused}, result: StatusRunning},
	ActionStop:   {from: []Status{StatusRunning, StatusPaused}, result: StatusStopped},
	ActionPause:  {from: []Status{StatusRunning}, result: StatusPaused},
	ActionResume: {from: []Status{StatusPaused}, result: StatusRunning},
}

// NextStatus returns the status resulting from applying action to a VM in
// the current status. It returns a *StateError if the action is not allowed
// from the current status.
func NextStatus(current Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", &ValidationError{Field: "action", Reason: "unknown action " + strconv.Quote(string(action))}
	}

	for _, s := range t.from {
		if s == current {
			return t.result, nil
		}
	}

	return "", &StateError{Action: action, CurrentStatus: current}
}

// ------------------------------------------------------- VM ------------------------------------------------------- //

// VM is one virtual machine record as stored and returned by a backend.
//
// ID is assigned by the store and immutable afterwards. Status only ever
// changes through a successful lifecycle action.
type VM struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Status Status            `json:"status"`
	CPU    int               `json:"cpu,omitempty"`
	Memory int               `json:"memory,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Copy returns a deep copy of the record. Stores hand out copies so callers
// never alias store-owned memory.
func (v VM) Copy() VM {
	out := v
	if v.Tags != nil {
		out.Tags = make(map[string]string, len(v.Tags))
		for k, val := range v.Tags {
			out.Tags[k] = val
		}
	}

	return out
}

// ----------------------------------------------------- VMCONFIG --------------------------------------------------- //

// VMConfig is a creation, replace or patch payload. Pointer fields
// distinguish "absent" from a zero value so partial patches merge only the
// supplied fields. Status is deliberately not part of the payload.
type VMConfig struct {
	ID     string            `json:"id,omitempty"`
	Name   *string           `json:"name,omitempty"`
	CPU    *int              `json:"cpu,omitempty"`
	Memory *int              `json:"memory,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// ValidName reports whether the payload carries a name that is non-empty
// after trimming whitespace.
func (c VMConfig) ValidName() bool {
	return c.Name != nil && strings.TrimSpace(*c.Name) != ""
}

// Validate checks field minimums: cpu and memory, when present, must be >= 1.
func (c VMConfig) Validate() error {
	if c.CPU != nil && *c.CPU < 1 {
		return &ValidationError{Field: "cpu", Reason: "must be >= 1"}
	}

	if c.Memory != nil && *c.Memory < 1 {
		return &ValidationError{Field: "memory", Reason: "must be >= 1"}
	}

	return nil
}
