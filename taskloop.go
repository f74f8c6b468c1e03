package taskloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/taskloop/clock"
	"github.com/jpalmerr/taskloop/internal/poller"
	"github.com/jpalmerr/taskloop/internal/store"
	"github.com/jpalmerr/taskloop/runner"
)

const (
	// DefaultDuration is the session length used when none is configured.
	DefaultDuration = 30 * time.Minute

	// DefaultInterval is the sleep between iterations used when none is configured.
	DefaultInterval = 3 * time.Minute
)

// ErrSessionRunning is returned by [Session.Run] when the session is
// already running.
var ErrSessionRunning = errors.New("session is already running")

// Session runs a fixed list of tasks repeatedly for a bounded duration.
//
// A Session is created using [New] with functional options and run with
// [Session.Run]. Each iteration runs every task in order, waiting for each
// to exit, then sleeps for the configured interval. The deadline is checked
// only before an iteration starts.
//
// The typical lifecycle is:
//
//	s, err := taskloop.New()
//	if err != nil {
//	    slog.Error("failed to create session", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	summary, err := s.Run(ctx) // blocks until the deadline passes or ctx is cancelled
//
// A Session may be run again after a previous run returns, but not
// concurrently.
type Session struct {
	tasks           []Task
	duration        time.Duration
	interval        time.Duration
	logger          *slog.Logger
	output          io.Writer
	runner          runner.Runner
	clock           clock.Clock
	resultCallbacks []func(TaskResult)
	history         store.Store

	mu      sync.Mutex
	running bool
}

// New creates a new [Session] with the given options.
//
// Defaults:
//   - Tasks: [DefaultTasks]
//   - Duration: 30 minutes
//   - Interval: 3 minutes
//   - Output: stdout; Logger: [slog.Default]
//   - Runner: [runner.Exec]; Clock: [clock.System]
//
// Returns an error if any option is invalid or task names are not unique.
//
// Example:
//
//	s, err := taskloop.New(
//	    taskloop.WithTasks(analysis, stats),
//	    taskloop.WithDuration(time.Hour),
//	    taskloop.WithInterval(5 * time.Minute),
//	)
func New(opts ...Option) (*Session, error) {
	cfg := &sessionConfig{
		duration: DefaultDuration,
		interval: DefaultInterval,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.tasks) == 0 {
		cfg.tasks = DefaultTasks()
	}

	// task names label progress lines and results, so they must be unambiguous
	seen := make(map[string]bool, len(cfg.tasks))
	for _, t := range cfg.tasks {
		if t.name == "" {
			return nil, errors.New("task must be created with NewTask")
		}
		if seen[t.name] {
			return nil, fmt.Errorf("duplicate task name: %q", t.name)
		}
		seen[t.name] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	output := cfg.output
	if output == nil {
		output = os.Stdout
	}
	r := cfg.runner
	if r == nil {
		r = runner.NewExec(nil, nil)
	}
	c := cfg.clock
	if c == nil {
		c = clock.System()
	}

	return &Session{
		tasks:           cfg.tasks,
		duration:        cfg.duration,
		interval:        cfg.interval,
		logger:          logger,
		output:          output,
		runner:          r,
		clock:           c,
		resultCallbacks: cfg.resultCallbacks,
		history:         store.NewMemoryStore(),
	}, nil
}

// Run executes the session and blocks until it ends.
//
// While the clock reads before the deadline, Run runs every task in order,
// writes a progress line after each, sleeps for the interval, and reports
// the new iteration number. When the deadline has passed it writes the
// local finish time followed by "Done!" exactly once.
//
// Task failures (non-zero exits, missing programs, timeouts) never stop the
// session and are never returned as errors. They are visible through
// [WithResultCallback], [Session.Results], and the returned [Summary].
//
// Run returns a non-nil error only if ctx is cancelled, in which case it
// stops at once without writing the final line, or if the session is
// already running.
func (s *Session) Run(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return Summary{}, ErrSessionRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	sessionID := uuid.NewString()
	s.history.Reset()

	s.logger.Info("session starting",
		"session_id", sessionID,
		"task_count", len(s.tasks),
		"duration", s.duration.String(),
		"interval", s.interval.String(),
	)

	loop := poller.NewLoop(poller.Config{
		SessionID: sessionID,
		Commands:  s.toCommands(),
		Duration:  s.duration,
		Interval:  s.interval,
		Runner:    s.runner,
		Clock:     s.clock,
		Output:    s.output,
		Logger:    s.logger,
		OnResult:  s.handleResult,
	})

	ps, err := loop.Run(ctx)
	summary := Summary{
		SessionID:  ps.SessionID,
		StartedAt:  ps.StartedAt,
		Deadline:   ps.Deadline,
		FinishedAt: ps.FinishedAt,
		Iterations: ps.Iterations,
		TaskRuns:   ps.TaskRuns,
		FailedRuns: ps.FailedRuns,
	}

	logAttrs := []any{
		"session_id", sessionID,
		"iterations", summary.Iterations,
		"task_runs", summary.TaskRuns,
		"failed_runs", summary.FailedRuns,
	}
	if err != nil {
		s.logger.Info("session interrupted", append(logAttrs, "error", err.Error())...)
		return summary, err
	}
	s.logger.Info("session finished", append(logAttrs, "overshoot", summary.Overshoot().String())...)
	return summary, nil
}

// handleResult records a poller result and fans it out to callbacks.
func (s *Session) handleResult(pr poller.Result) {
	// store first (callbacks fire after the record is visible in Results)
	s.history.Append(pollerResultToRecord(pr))

	if len(s.resultCallbacks) == 0 {
		return
	}
	result := pollerResultToPublicResult(pr)
	for _, cb := range s.resultCallbacks {
		invokeCallbackSafe(cb, result, s.logger)
	}
}

// Results returns every task result recorded by the current or most recent
// run, in the order the runs finished.
//
// The history is kept in memory only and is cleared when Run starts again.
func (s *Session) Results() []TaskResult {
	records := s.history.GetAll()
	results := make([]TaskResult, len(records))
	for i, rec := range records {
		results[i] = recordToPublicResult(rec)
	}
	return results
}

// Tasks returns a copy of the configured tasks in run order.
func (s *Session) Tasks() []Task {
	cp := make([]Task, len(s.tasks))
	copy(cp, s.tasks)
	return cp
}

// Duration returns the configured session length.
func (s *Session) Duration() time.Duration {
	return s.duration
}

// Interval returns the configured sleep between iterations.
func (s *Session) Interval() time.Duration {
	return s.interval
}

// toCommands converts the task list to the runner's representation.
func (s *Session) toCommands() []runner.Command {
	cmds := make([]runner.Command, len(s.tasks))
	for i, t := range s.tasks {
		cmds[i] = t.toCommand()
	}
	return cmds
}

// pollerResultToRecord converts a poller result to a store record.
func pollerResultToRecord(pr poller.Result) store.TaskRecord {
	var errStr *string
	if pr.Error != nil {
		s := pr.Error.Error()
		errStr = &s
	}

	return store.TaskRecord{
		SessionID:  pr.SessionID,
		Task:       pr.TaskName,
		Iteration:  pr.Iteration,
		ExitCode:   pr.ExitCode,
		DurationMs: pr.FinishedAt.Sub(pr.StartedAt).Milliseconds(),
		StartedAt:  pr.StartedAt,
		FinishedAt: pr.FinishedAt,
		Error:      errStr,
	}
}

// pollerResultToPublicResult converts an internal poller result to the public type.
func pollerResultToPublicResult(pr poller.Result) TaskResult {
	return TaskResult{
		SessionID:  pr.SessionID,
		TaskName:   pr.TaskName,
		Iteration:  pr.Iteration,
		ExitCode:   pr.ExitCode,
		StartedAt:  pr.StartedAt,
		FinishedAt: pr.FinishedAt,
		Error:      pr.Error,
	}
}

// recordToPublicResult converts a stored record back to the public type.
// The original error value is not kept; its message is.
func recordToPublicResult(rec store.TaskRecord) TaskResult {
	var err error
	if rec.Error != nil {
		err = errors.New(*rec.Error)
	}

	return TaskResult{
		SessionID:  rec.SessionID,
		TaskName:   rec.Task,
		Iteration:  rec.Iteration,
		ExitCode:   rec.ExitCode,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Error:      err,
	}
}

// invokeCallbackSafe calls a result callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(TaskResult), result TaskResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("result callback panicked",
				"panic", r,
				"task", result.TaskName,
				"iteration", result.Iteration,
			)
		}
	}()
	cb(result)
}
