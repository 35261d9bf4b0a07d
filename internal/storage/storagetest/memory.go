// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/techspire01/ciadev/internal/storage"
)

// ErrUnavailable is returned by Open when FailOpen is set and by Ping when
// Unreachable is set.
var ErrUnavailable = errors.New("storagetest: store unavailable")

// Memory is a thread-safe in-memory store honoring the storage.Storage
// degradation contract. The Fail* switches simulate an unreachable store.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte

	// FailSave drops uploads silently, like a network failure would.
	FailSave bool
	// FailDelete makes Delete report false and keep the object.
	FailDelete bool
	// FailSign makes URL return the public fallback.
	FailSign bool
	// FailOpen makes Open return ErrUnavailable.
	FailOpen bool
	// NoURL makes URL return "", as a misconfigured store would.
	NoURL bool
	// Unreachable makes Ping fail and Exists report false for every key.
	Unreachable bool

	deletes []string
}

var _ storage.Storage = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

// Put seeds an object directly.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys returns all stored keys, sorted.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Deletes returns every key Delete was called with, in order.
func (m *Memory) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

func (m *Memory) Save(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if key == "" {
		return "", storage.ErrInvalidKey
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.FailSave {
		m.objects[key] = data
	}
	return key, nil
}

func (m *Memory) Exists(_ context.Context, key string) bool {
	m.mu.Lock()
	unreachable := m.Unreachable
	m.mu.Unlock()
	return !unreachable && m.Has(key)
}

// Ping returns ErrUnavailable when Unreachable is set.
func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Unreachable {
		return ErrUnavailable
	}
	return nil
}

func (m *Memory) URL(_ context.Context, key string, expires time.Duration) string {
	if key == "" {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NoURL {
		return ""
	}
	if m.FailSign {
		return "http://public.test/" + key + "?download=1"
	}
	if expires <= 0 {
		expires = storage.DefaultURLExpiry
	}
	return "https://signed.test/" + key + "?expires=" + expires.String()
}

func (m *Memory) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	if m.FailDelete || key == "" {
		return false
	}
	delete(m.objects, key)
	return true
}

func (m *Memory) Size(_ context.Context, key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return int64(len(data)), ok
}

// Open returns a non-seekable reader so callers exercise their buffering path.
func (m *Memory) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOpen {
		return nil, ErrUnavailable
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("storagetest: no such key " + key)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}
