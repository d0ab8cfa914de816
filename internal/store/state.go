// Package store holds the console's per-domain state containers. Each one
// loads through the API client, keeps the last result and remembers the
// last failure message for its view.
package store

import (
	"sync"
)

// state is the loading flag and last error shared by every store.
type state struct {
	mu      sync.RWMutex
	loading bool
	err     string
}

// run marks the store as loading for the duration of fn and records the
// failure message when fn fails.
func (s *state) run(fn func() error) error {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	err := fn()

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

// Loading reports whether a call is in flight.
func (s *state) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the message of the last failed call, or "".
func (s *state) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
