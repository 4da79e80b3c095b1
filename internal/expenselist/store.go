package expenselist

import (
	"sync"

	"casaspese/internal/core"
)

// Store is a host-owned expense collection. Writers hand in a transformation
// of the latest snapshot instead of a finished slice, so updates issued from
// different places compose without losing each other's changes.
type Store struct {
	mu    sync.Mutex
	items []core.ExpenseRecord
	// observers are called after each update with the new snapshot.
	observers []func([]core.ExpenseRecord)
}

// NewStore seeds the collection; the seed is sorted newest first.
func NewStore(seed []core.ExpenseRecord) *Store {
	var items []core.ExpenseRecord
	for _, e := range seed {
		items = Insert(items, e)
	}
	return &Store{items: items}
}

// Snapshot returns a copy of the current collection.
func (s *Store) Snapshot() []core.ExpenseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseRecord(nil), s.items...)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Update replaces the collection with fn(current). fn must not retain or
// modify its argument.
func (s *Store) Update(fn func([]core.ExpenseRecord) []core.ExpenseRecord) {
	s.mu.Lock()
	next := fn(append([]core.ExpenseRecord(nil), s.items...))
	s.items = next
	observers := make([]func([]core.ExpenseRecord), len(s.observers))
	copy(observers, s.observers)
	snapshot := append([]core.ExpenseRecord(nil), next...)
	s.mu.Unlock()

	for _, o := range observers {
		o(snapshot)
	}
}

// Observe registers fn to receive every post-update snapshot.
func (s *Store) Observe(fn func([]core.ExpenseRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}
