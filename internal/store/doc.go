// Package store keeps the in-memory history of sub-task runs for a session.
//
// This package is internal to taskloop. Nothing is written to disk; the
// history lives as long as the [MemoryStore] and is cleared when a new
// session starts.
//
// The main components are:
//
//   - [Store]: Interface defining the history operations
//   - [MemoryStore]: In-memory implementation of Store
//   - [TaskRecord]: Storage representation of one sub-task run
//
// The store is designed for concurrent access with proper synchronization.
package store
