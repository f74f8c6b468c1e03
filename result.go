package taskloop

import "time"

// TaskResult holds the outcome of one run of a [Task] within a session.
//
// TaskResult is passed to callbacks registered via [WithResultCallback] and
// returned by [Session.Results].
type TaskResult struct {
	// SessionID identifies the session the run belongs to.
	SessionID string

	// TaskName is the display name of the task.
	TaskName string

	// Iteration is the 1-based iteration number.
	Iteration int

	// ExitCode is the process exit status. It is -1 when the process could
	// not be started or was killed.
	ExitCode int

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Error is set when the task could not be started, timed out, or was
	// interrupted. A plain non-zero exit leaves Error nil.
	Error error
}

// Duration returns how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the run errored or exited non-zero.
func (r TaskResult) Failed() bool {
	return r.Error != nil || r.ExitCode != 0
}

// Summary describes a finished or interrupted session.
type Summary struct {
	// SessionID is a random UUID generated when the session starts.
	SessionID string

	// StartedAt is the session anchor. Deadline is StartedAt plus the
	// configured duration.
	StartedAt time.Time
	Deadline  time.Time

	// FinishedAt is when the loop exited. It may be past Deadline by up to
	// one iteration.
	FinishedAt time.Time

	// Iterations counts iterations that ran to completion, sleep included.
	Iterations int

	// TaskRuns counts task runs; FailedRuns is the subset that failed.
	TaskRuns   int
	FailedRuns int
}

// Overshoot returns how far past the deadline the session ended.
// Returns zero if the session ended before the deadline.
func (s Summary) Overshoot() time.Duration {
	if d := s.FinishedAt.Sub(s.Deadline); d > 0 {
		return d
	}
	return 0
}
