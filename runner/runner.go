package runner

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrTimeout is wrapped into [Result.Error] when a command exceeds its
// configured timeout.
var ErrTimeout = errors.New("command timed out")

// Command describes a single external program invocation.
type Command struct {
	// Name is the display name used in progress lines and logs.
	Name string

	// Path is the program to execute, resolved via PATH when it has no
	// separators.
	Path string

	// Args are passed to the program after Path.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra "KEY=value" entries appended to the inherited environment.
	Env []string

	// Timeout bounds the run. Zero means no limit.
	Timeout time.Duration
}

// String returns the command line as it would be typed in a shell.
func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// Result holds the outcome of running a [Command].
type Result struct {
	// ExitCode is the process exit status. It is -1 when the process could
	// not be started or was killed by a signal.
	ExitCode int

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the process exited (or the launch failed).
	FinishedAt time.Time

	// Error is set when the command could not be started, timed out, or was
	// interrupted. A plain non-zero exit leaves Error nil.
	Error error
}

// Duration returns how long the run took.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failed reports whether the run errored or exited non-zero.
func (r Result) Failed() bool {
	return r.Error != nil || r.ExitCode != 0
}

// Runner runs a command to completion and reports how it went.
//
// Run blocks until the command exits or ctx is cancelled.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}
