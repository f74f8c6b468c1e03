package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output pipes to drain after the
// process has been killed. Grandchildren can keep a pipe open indefinitely.
const waitDelay = 2 * time.Second

// Exec is a [Runner] that starts real processes with [os/exec].
//
// Children inherit stdin and write to the configured stdout and stderr,
// which default to the parent's own streams. The parent environment is
// inherited, extended by [Command.Env].
type Exec struct {
	stdout io.Writer
	stderr io.Writer
}

// NewExec creates an [Exec] runner. Nil writers default to [os.Stdout]
// and [os.Stderr].
func NewExec(stdout, stderr io.Writer) *Exec {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Exec{stdout: stdout, stderr: stderr}
}

// Run starts cmd and waits for it to exit.
//
// Cancelling ctx kills the process. When cmd.Timeout is set the process is
// killed after that long and the result error wraps [ErrTimeout].
// Run always returns a Result; errors are captured in its Error field.
func (e *Exec) Run(ctx context.Context, cmd Command) Result {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	start := time.Now()

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdin = os.Stdin
	c.Stdout = e.stdout
	c.Stderr = e.stderr
	c.WaitDelay = waitDelay
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	err := c.Run()
	result := Result{
		ExitCode:   -1,
		StartedAt:  start,
		FinishedAt: time.Now(),
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	}

	switch {
	case err == nil:
		result.ExitCode = 0
	case ctx.Err() != nil:
		result.Error = fmt.Errorf("%s interrupted: %w", cmd.Name, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.Error = fmt.Errorf("%s: %w after %s", cmd.Name, ErrTimeout, cmd.Timeout)
	case exitErr != nil:
		// plain non-zero exit, reported through ExitCode only
	default:
		result.Error = fmt.Errorf("failed to start %s: %w", cmd.String(), err)
	}

	return result
}
