package taskloop

import (
	"errors"
	"strings"
	"time"
)

// taskConfig holds mutable state during task construction.
type taskConfig struct {
	args    []string
	dir     string
	env     map[string]string
	timeout time.Duration
}

// TaskOption is a function that configures a [Task] during construction.
//
// Built-in options: [WithArgs], [WithDir], [WithEnv], [WithTaskTimeout].
type TaskOption func(*taskConfig) error

// WithArgs appends arguments passed to the task's program.
//
// Example:
//
//	task, err := taskloop.NewTask("analysis", "python3",
//	    taskloop.WithArgs("if_analysis_works.py"),
//	)
func WithArgs(args ...string) TaskOption {
	return func(cfg *taskConfig) error {
		cfg.args = append(cfg.args, args...)
		return nil
	}
}

// WithDir sets the working directory the task runs in.
func WithDir(dir string) TaskOption {
	return func(cfg *taskConfig) error {
		cfg.dir = dir
		return nil
	}
}

// WithEnv adds environment variables on top of the inherited environment.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	task, err := taskloop.NewTask("stats", "Rscript",
//	    taskloop.WithEnv("R_LIBS_USER", "/opt/r-libs"),
//	)
//
// Returns an error if an odd number of arguments is provided or a key is
// empty or contains '='.
func WithEnv(keyValues ...string) TaskOption {
	return func(cfg *taskConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithEnv requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			key := keyValues[i]
			if key == "" || strings.Contains(key, "=") {
				return errors.New("environment variable name must be non-empty and must not contain '='")
			}
			cfg.env[key] = keyValues[i+1]
		}
		return nil
	}
}

// WithTaskTimeout bounds how long a single run of the task may take.
//
// A run that exceeds the timeout is killed and recorded as failed; the
// session carries on. Zero disables the timeout, which is the default.
//
// Returns an error if the duration is negative.
func WithTaskTimeout(d time.Duration) TaskOption {
	return func(cfg *taskConfig) error {
		if d < 0 {
			return errors.New("task timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}
