package tle

import (
	"sync/atomic"
	"time"
)

// Store publishes the element set in use so other goroutines (the HTTP
// status server) can read it without locking.
type Store struct {
	current atomic.Pointer[ElementSet]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current element set, or nil if none has been loaded.
func (s *Store) Get() *ElementSet {
	return s.current.Load()
}

// Set atomically replaces the current element set.
func (s *Store) Set(es ElementSet) {
	s.current.Store(&es)
}

// AgeSeconds returns the age of the current element set in seconds,
// or -1 if none is loaded.
func (s *Store) AgeSeconds(now time.Time) float64 {
	es := s.current.Load()
	if es == nil {
		return -1
	}
	return es.Age(now).Seconds()
}
