package store

import "time"

// TaskRecord represents one sub-task run in storage.
//
// TaskRecord is decoupled from the poller's internal types so the two can
// evolve independently. It is JSON-tagged for structured output.
type TaskRecord struct {
	// SessionID identifies the session the run belongs to.
	SessionID string `json:"session_id"`

	// Task is the sub-task's display name.
	Task string `json:"task"`

	// Iteration is the 1-based iteration number.
	Iteration int `json:"iteration"`

	// ExitCode is the process exit status, -1 if it never started or was killed.
	ExitCode int `json:"exit_code"`

	// DurationMs is the run time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Error contains the error message if the run could not complete.
	// nil indicates no error (though the exit code may still be non-zero).
	Error *string `json:"error"`
}

// Store defines the interface for recording sub-task runs.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Append adds a record to the end of the history.
	Append(record TaskRecord)

	// GetAll returns every record in append order.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []TaskRecord

	// Len returns the number of stored records.
	Len() int

	// Reset discards all records.
	Reset()
}
