package taskloop

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/taskloop/clock"
	"github.com/jpalmerr/taskloop/runner"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testStart = time.Date(2024, 4, 12, 9, 0, 0, 0, time.UTC)

// fakeRunner records every command it is asked to run and returns a
// configurable exit code without starting a process.
type fakeRunner struct {
	clock     *clock.Fake
	took      time.Duration
	exitCodes map[string]int
	errs      map[string]error
	onRun     func(cmd runner.Command)

	mu       sync.Mutex
	commands []runner.Command
}

func (f *fakeRunner) Run(ctx context.Context, cmd runner.Command) runner.Result {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	if f.onRun != nil {
		f.onRun(cmd)
	}

	start := f.clock.Now()
	f.clock.Advance(f.took)
	return runner.Result{
		ExitCode:   f.exitCodes[cmd.Name],
		StartedAt:  start,
		FinishedAt: f.clock.Now(),
		Error:      f.errs[cmd.Name],
	}
}

func (f *fakeRunner) Commands() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.commands...)
}

// mustTask builds a task or panics; for test tables only.
func mustTask(name, command string, opts ...TaskOption) Task {
	t, err := NewTask(name, command, opts...)
	if err != nil {
		panic(err)
	}
	return t
}
