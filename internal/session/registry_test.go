//go:build unit

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

package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandremahdhaoui/univor/internal/session"
	"github.com/alexandremahdhaoui/univor/internal/types"
)

const fakeBackend types.BackendType = "fake"

// fakeSession counts connects and disconnects so tests can assert how often
// the registry actually dialed.
type fakeSession struct {
	hostURL string
	user    string

	connectErr  error
	connects    atomic.Int32
	disconnects atomic.Int32
	alive       atomic.Bool
}

func (f *fakeSession) BackendType() types.BackendType { return fakeBackend }
func (f *fakeSession) BaseURL() string                { return f.hostURL }
func (f *fakeSession) User() string                   { return f.user }
func (f *fakeSession) ID() string                     { return f.hostURL + "/" + f.user }

func (f *fakeSession) Connect(context.Context) error {
	f.connects.Add(1)

	if f.connectErr != nil {
		return f.connectErr
	}

	f.alive.Store(true)

	return nil
}

func (f *fakeSession) IsAlive(context.Context) bool { return f.alive.Load() }

func (f *fakeSession) Disconnect() error {
	f.disconnects.Add(1)
	f.alive.Store(false)

	return nil
}

// fakeFactory records every session it built.
type fakeFactory struct {
	mu         sync.Mutex
	built      []*fakeSession
	connectErr error
}

func (f *fakeFactory) new(hostURL, user, _ string) session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &fakeSession{hostURL: hostURL, user: user, connectErr: f.connectErr}
	f.built = append(f.built, s)

	return s
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.built)
}

func newTestRegistry(factory *fakeFactory) *session.Registry {
	r := session.NewRegistry()
	r.Register(fakeBackend, factory.new)

	return r
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("CachesPerHostAndUser", func(t *testing.T) {
		factory := &fakeFactory{}
		r := newTestRegistry(factory)

		first, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
		require.NoError(t, err)

		second, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, factory.count())
	})

	t.Run("DistinctKeysGetDistinctSessions", func(t *testing.T) {
		factory := &fakeFactory{}
		r := newTestRegistry(factory)

		a, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
		require.NoError(t, err)

		b, err := r.GetOrCreate(ctx, fakeBackend, "http://h2", "alice", "pw")
		require.NoError(t, err)

		c, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "bob", "pw")
		require.NoError(t, err)

		assert.NotSame(t, a, b)
		assert.NotSame(t, a, c)
		assert.Equal(t, 3, r.Len())
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		r := session.NewRegistry()

		_, err := r.GetOrCreate(ctx, "vmware", "http://h1", "alice", "pw")
		assert.ErrorIs(t, err, types.ErrUnsupportedBackend)

		var ube *types.UnsupportedBackendError
		require.ErrorAs(t, err, &ube)
		assert.Equal(t, types.BackendType("vmware"), ube.BackendType)
	})

	t.Run("FailedConnectIsNotCached", func(t *testing.T) {
		factory := &fakeFactory{connectErr: errors.New("refused")}
		r := newTestRegistry(factory)

		_, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
		require.Error(t, err)
		assert.Equal(t, 0, r.Len())

		// Once the backend is reachable the same key connects fine.
		factory.mu.Lock()
		factory.connectErr = nil
		factory.mu.Unlock()

		s, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
		require.NoError(t, err)
		assert.True(t, s.IsAlive(ctx))
		assert.Equal(t, 2, factory.count())
	})

	t.Run("DeadSessionIsStillReturned", func(t *testing.T) {
		factory := &fakeFactory{}
		r := newTestRegistry(factory)

		s, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
		require.NoError(t, err)

		require.NoError(t, s.Disconnect())
		assert.False(t, s.IsAlive(ctx))

		again, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
		require.NoError(t, err)
		assert.Same(t, s, again, "liveness is the caller's problem, not the cache's")
	})
}

// TestGetOrCreateConcurrent hammers one key from many goroutines and checks
// exactly one session was built and connected.
func TestGetOrCreateConcurrent(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{}
	r := newTestRegistry(factory)

	const workers = 32

	sessions := make([]session.Session, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			s, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}

	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}

	assert.Equal(t, 1, factory.count())
	assert.Equal(t, int32(1), factory.built[0].connects.Load())
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{}
	r := newTestRegistry(factory)

	_, ok := r.Get("http://h1", "alice")
	assert.False(t, ok)

	s, err := r.GetOrCreate(ctx, fakeBackend, "http://h1", "alice", "pw")
	require.NoError(t, err)

	got, ok := r.Get("http://h1", "alice")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestTeardown(t *testing.T) {
	ctx := context.Background()
	factory := &fakeFactory{}
	r := newTestRegistry(factory)

	for i := 0; i < 3; i++ {
		_, err := r.GetOrCreate(ctx, fakeBackend, fmt.Sprintf("http://h%d", i), "alice", "pw")
		require.NoError(t, err)
	}

	require.Equal(t, 3, r.Len())
	require.NoError(t, r.Teardown())
	assert.Equal(t, 0, r.Len())

	for _, s := range factory.built {
		assert.Equal(t, int32(1), s.disconnects.Load())
	}
}
