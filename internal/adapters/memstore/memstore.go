// Package memstore provides a process-local slot for one-shot runs where no
// session should outlive the process.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/skala/skip-session/internal/ports"
)

// Store is a concurrency-safe in-memory ports.KeyValueStore.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ ports.KeyValueStore = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
