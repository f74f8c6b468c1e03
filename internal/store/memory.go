package store

import (
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe, append-only storage of [TaskRecord]
// values. Records are returned in the order they were appended.
type MemoryStore struct {
	mu      sync.RWMutex
	records []TaskRecord
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores a [TaskRecord] at the end of the history.
func (m *MemoryStore) Append(record TaskRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
}

// GetAll returns a snapshot of all stored records in append order.
//
// The returned slice is a copy; modifications do not affect the store.
func (m *MemoryStore) GetAll() []TaskRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]TaskRecord, len(m.records))
	copy(results, m.records)
	return results
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Reset discards all stored records.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}
