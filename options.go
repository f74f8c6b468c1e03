package taskloop

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jpalmerr/taskloop/clock"
	"github.com/jpalmerr/taskloop/runner"
)

// sessionConfig holds mutable state during Session construction.
type sessionConfig struct {
	tasks           []Task
	duration        time.Duration
	interval        time.Duration
	logger          *slog.Logger
	output          io.Writer
	runner          runner.Runner
	clock           clock.Clock
	resultCallbacks []func(TaskResult)
}

// Option is a function that configures a [Session] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithTask], [WithTasks], [WithDuration], [WithInterval],
// [WithLogger], [WithOutput], [WithRunner], [WithClock], [WithResultCallback].
type Option func(*sessionConfig) error

// WithTask adds a single [Task] to the end of the per-iteration list.
//
// Can be called multiple times; tasks run in the order they were added.
// If no task is configured, [DefaultTasks] is used.
func WithTask(t Task) Option {
	return func(cfg *sessionConfig) error {
		cfg.tasks = append(cfg.tasks, t)
		return nil
	}
}

// WithTasks adds multiple [Task] values to the end of the per-iteration list.
//
// Equivalent to calling [WithTask] for each task in order.
//
// Example:
//
//	s, err := taskloop.New(
//	    taskloop.WithTasks(analysis, stats),
//	)
func WithTasks(tasks ...Task) Option {
	return func(cfg *sessionConfig) error {
		cfg.tasks = append(cfg.tasks, tasks...)
		return nil
	}
}

// WithDuration sets the total session length.
//
// The deadline is only checked before an iteration starts, so a session
// may run past it by up to one iteration. Defaults to 30 minutes.
//
// Returns an error if the duration is zero or negative.
func WithDuration(d time.Duration) Option {
	return func(cfg *sessionConfig) error {
		if d <= 0 {
			return errors.New("session duration must be positive")
		}
		cfg.duration = d
		return nil
	}
}

// WithInterval sets the sleep between iterations.
//
// The sleep starts after the last task of an iteration exits, so the time
// between iteration starts is the interval plus the tasks' run time.
// Defaults to 3 minutes.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *sessionConfig) error {
		if d <= 0 {
			return errors.New("interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Session.
//
// If not specified, [slog.Default] is used. Progress lines are not logged;
// they go to the writer set by [WithOutput].
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *sessionConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOutput sets where progress lines are written. Defaults to [os.Stdout].
//
// Returns an error if the writer is nil.
func WithOutput(w io.Writer) Option {
	return func(cfg *sessionConfig) error {
		if w == nil {
			return errors.New("output cannot be nil")
		}
		cfg.output = w
		return nil
	}
}

// WithRunner sets the [runner.Runner] used to execute tasks.
//
// Defaults to a [runner.Exec] that shares the process's stdout and stderr.
// Tests typically supply a fake that records invocations.
//
// Returns an error if the runner is nil.
func WithRunner(r runner.Runner) Option {
	return func(cfg *sessionConfig) error {
		if r == nil {
			return errors.New("runner cannot be nil")
		}
		cfg.runner = r
		return nil
	}
}

// WithClock sets the [clock.Clock] used for the deadline and the sleep.
//
// Defaults to [clock.System]. Use a [clock.Fake] to run a full session
// without waiting in real time.
//
// Returns an error if the clock is nil.
func WithClock(c clock.Clock) Option {
	return func(cfg *sessionConfig) error {
		if c == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = c
		return nil
	}
}

// WithResultCallback registers a function called after every task run.
//
// Callbacks run synchronously on the session goroutine, in registration
// order, before the progress line for that run is printed. A slow callback
// delays the next task. Panics within callbacks are recovered and logged.
//
// Example:
//
//	s, err := taskloop.New(
//	    taskloop.WithResultCallback(func(r taskloop.TaskResult) {
//	        if r.Failed() {
//	            log.Printf("%s exited %d", r.TaskName, r.ExitCode)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithResultCallback(cb func(TaskResult)) Option {
	return func(cfg *sessionConfig) error {
		if cb == nil {
			return nil
		}
		cfg.resultCallbacks = append(cfg.resultCallbacks, cb)
		return nil
	}
}
