package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/taskloop/clock"
	"github.com/jpalmerr/taskloop/runner"
)

// TimestampLayout is the layout of the final "Done!" line.
const TimestampLayout = "2006-01-02 15:04:05"

// Result holds the outcome of one command run within an iteration.
type Result struct {
	// SessionID identifies the session the run belongs to.
	SessionID string

	// TaskName is the display name of the command.
	TaskName string

	// Iteration is the 1-based iteration number.
	Iteration int

	// ExitCode is the process exit status, -1 if it never started or was killed.
	ExitCode int

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Error is set when the command could not be started, timed out, or was
	// interrupted. It never stops the loop.
	Error error
}

// Failed reports whether the run errored or exited non-zero.
func (r Result) Failed() bool {
	return r.Error != nil || r.ExitCode != 0
}

// Summary describes a finished or interrupted session.
type Summary struct {
	SessionID string

	// StartedAt is the session anchor; Deadline is StartedAt plus the duration.
	StartedAt time.Time
	Deadline  time.Time

	// FinishedAt is when the loop exited.
	FinishedAt time.Time

	// Iterations counts loop passes that ran to completion, sleep included.
	Iterations int

	// TaskRuns counts command runs; FailedRuns the subset that failed.
	TaskRuns   int
	FailedRuns int
}

// Config contains everything needed to build a [Loop].
type Config struct {
	// SessionID is attached to every result and log line.
	SessionID string

	// Commands run in order on every iteration.
	Commands []runner.Command

	// Duration is the session length measured from the first clock reading.
	Duration time.Duration

	// Interval is the sleep after the last command of each iteration.
	Interval time.Duration

	Runner runner.Runner
	Clock  clock.Clock

	// Output receives the human-readable progress lines.
	Output io.Writer

	Logger *slog.Logger

	// OnResult is called synchronously after every command run, before the
	// progress line for that run is printed. A run cut short by cancellation
	// is still reported. May be nil.
	OnResult func(Result)
}

// Loop runs a bounded, fixed-interval polling session.
//
// A Loop is strictly sequential: a command always exits before the next one
// starts, and the last command always exits before the sleep begins.
type Loop struct {
	cfg Config
}

// NewLoop creates a [Loop] from cfg.
//
// Nil Runner, Clock, Output and Logger fields default to an [runner.Exec]
// on the process streams, the system clock, [io.Discard] and [slog.Default].
func NewLoop(cfg Config) *Loop {
	if cfg.Runner == nil {
		cfg.Runner = runner.NewExec(nil, nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{cfg: cfg}
}

// Run executes the session and blocks until it ends.
//
// While the clock reads strictly before the deadline, Run:
//  1. Runs each command in order, printing a progress line after each
//  2. Sleeps for the configured interval
//  3. Increments the iteration counter and prints it
//
// After the loop exits it prints the local finish time followed by "Done!"
// exactly once. Command failures are recorded but never stop the loop.
//
// If ctx is cancelled during a command or the sleep, Run returns at once
// with the partial summary and an error wrapping ctx.Err(). The final line
// is not printed in that case.
func (l *Loop) Run(ctx context.Context) (Summary, error) {
	start := l.cfg.Clock.Now()
	summary := Summary{
		SessionID: l.cfg.SessionID,
		StartedAt: start,
		Deadline:  start.Add(l.cfg.Duration),
	}

	l.cfg.Logger.Debug("loop started",
		"session_id", l.cfg.SessionID,
		"deadline", summary.Deadline.Format(time.RFC3339),
	)

	iteration := 1
	for l.cfg.Clock.Now().Before(summary.Deadline) {
		for i, cmd := range l.cfg.Commands {
			if err := ctx.Err(); err != nil {
				return l.interrupted(summary, err)
			}

			result := l.runCommand(ctx, cmd, iteration)
			summary.TaskRuns++
			if result.Failed() {
				summary.FailedRuns++
			}

			if l.cfg.OnResult != nil {
				l.cfg.OnResult(result)
			}

			if err := ctx.Err(); err != nil {
				return l.interrupted(summary, err)
			}

			if i+1 < len(l.cfg.Commands) {
				l.printf("%s DONE! On to %s\n", cmd.Name, l.cfg.Commands[i+1].Name)
			} else {
				l.printf("%s DONE! Sleeping for %s!\n", cmd.Name, l.cfg.Interval)
			}
		}

		if err := l.cfg.Clock.Sleep(ctx, l.cfg.Interval); err != nil {
			return l.interrupted(summary, err)
		}
		summary.Iterations++
		iteration++
		l.printf("Sleep done! Iteration #%d!\n", iteration)
	}

	summary.FinishedAt = l.cfg.Clock.Now()
	l.printf("%s Done!\n", summary.FinishedAt.Local().Format(TimestampLayout))

	l.cfg.Logger.Debug("loop finished",
		"session_id", l.cfg.SessionID,
		"iterations", summary.Iterations,
		"overshoot", summary.FinishedAt.Sub(summary.Deadline).String(),
	)
	return summary, nil
}

// runCommand runs one command and converts the runner outcome to a [Result].
func (l *Loop) runCommand(ctx context.Context, cmd runner.Command, iteration int) Result {
	res := l.safeRun(ctx, cmd)

	result := Result{
		SessionID:  l.cfg.SessionID,
		TaskName:   cmd.Name,
		Iteration:  iteration,
		ExitCode:   res.ExitCode,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Error:      res.Error,
	}

	logAttrs := []any{
		"session_id", l.cfg.SessionID,
		"task", cmd.Name,
		"iteration", iteration,
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration().Milliseconds(),
	}
	if res.Error != nil {
		logAttrs = append(logAttrs, "error", res.Error.Error())
	}
	l.cfg.Logger.Debug("task finished", logAttrs...)

	return result
}

// safeRun calls the runner with panic recovery.
//
// A panicking runner is logged with a correlation ID and reported as a
// failed run, so a faulty custom runner cannot end the session.
func (l *Loop) safeRun(ctx context.Context, cmd runner.Command) (res runner.Result) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			l.cfg.Logger.Error("runner panic",
				"correlation_id", correlationID,
				"task", cmd.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			now := l.cfg.Clock.Now()
			res = runner.Result{
				ExitCode:   -1,
				StartedAt:  now,
				FinishedAt: now,
				Error:      fmt.Errorf("runner panic (correlation_id: %s)", correlationID),
			}
		}
	}()
	return l.cfg.Runner.Run(ctx, cmd)
}

// interrupted closes out a summary for a cancelled session.
func (l *Loop) interrupted(summary Summary, err error) (Summary, error) {
	summary.FinishedAt = l.cfg.Clock.Now()
	l.cfg.Logger.Debug("loop interrupted",
		"session_id", l.cfg.SessionID,
		"iterations", summary.Iterations,
		"error", err.Error(),
	)
	return summary, fmt.Errorf("session interrupted: %w", err)
}

// printf writes a progress line. Write errors are ignored; a closed console
// must not stop the session.
func (l *Loop) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.cfg.Output, format, args...)
}
