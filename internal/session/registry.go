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

package session

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/alexandremahdhaoui/univor/internal/types"
)

// Factory builds an unconnected session for one backend type.
type Factory func(hostURL, user, password string) Session

// key identifies a cached session. The backend type is deliberately not part
// of the key: one (host, user) pair maps to at most one live session.
type key struct {
	host string
	user string
}

// Registry is a process-wide cache mapping (host, user) to a connected
// Session. It guarantees at most one live session per key under concurrent
// access, constructed once at startup and passed to callers by reference.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[key]Session
	factories map[types.BackendType]Factory
	group     singleflight.Group
}

// NewRegistry returns a Registry with the mock hypervisor backend
// registered. Further backend types are added with Register.
func NewRegistry() *Registry {
	r := &Registry{
		sessions:  make(map[key]Session),
		factories: make(map[types.BackendType]Factory),
	}

	r.Register(types.BackendMockvisor, func(hostURL, user, password string) Session {
		return NewMockvisor(hostURL, user, password)
	})

	return r
}

// Register adds a session factory for a backend type.
func (r *Registry) Register(backendType types.BackendType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[backendType] = factory
}

// GetOrCreate returns the cached session for (hostURL, user), creating and
// connecting one on first request. A cached session is returned
// unconditionally, even if it has since gone non-alive. Concurrent first
// requests for the same key share a single connect attempt; a failed
// connect is not cached, so the next call retries from scratch.
func (r *Registry) GetOrCreate(
	ctx context.Context,
	backendType types.BackendType,
	hostURL, user, password string,
) (Session, error) {
	k := key{host: hostURL, user: user}

	r.mu.RLock()
	s, ok := r.sessions[k]
	r.mu.RUnlock()

	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(hostURL+"\x00"+user, func() (any, error) {
		// Re-check under the singleflight: the losing side of an earlier
		// race must observe the winner's session.
		r.mu.RLock()
		s, ok := r.sessions[k]
		r.mu.RUnlock()

		if ok {
			return s, nil
		}

		r.mu.RLock()
		factory, ok := r.factories[backendType]
		r.mu.RUnlock()

		if !ok {
			return nil, &types.UnsupportedBackendError{BackendType: backendType}
		}

		s = factory(hostURL, user, password)
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[k] = s
		r.mu.Unlock()

		return s, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(Session), nil
}

// Get returns the cached session for (hostURL, user), if any.
func (r *Registry) Get(hostURL, user string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[key{host: hostURL, user: user}]

	return s, ok
}

// Len returns the number of cached sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Teardown disconnects and drops every cached session. This is the only way
// entries leave the registry short of process shutdown.
func (r *Registry) Teardown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for k, s := range r.sessions {
		errs = errors.Join(errs, s.Disconnect())
		delete(r.sessions, k)
	}

	return errs
}
