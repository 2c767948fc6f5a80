package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// Store is an in-memory implementation of the b2middleware.PreferenceStore interface
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates a new in-memory preference store
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// NewWithValues creates an in-memory store holding a copy of values
func NewWithValues(values map[string]string) *Store {
	s := New()
	maps.Copy(s.values, values)
	return s
}

var _ b2middleware.PreferenceStore = (*Store)(nil)

// Get returns the value stored under key
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok, nil
}

// GetAll returns the present keys under a single lock
func (s *Store) GetAll(ctx context.Context, keys ...string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := s.values[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

// Set stores value under key
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

// SetAll stores every pair under a single lock
func (s *Store) SetAll(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.values, values)
	return nil
}

// Snapshot returns a copy of every stored value
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.values)
}
