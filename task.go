package taskloop

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jpalmerr/taskloop/runner"
)

// Literal defaults for the two sub-tasks run by a session when none are
// configured.
const (
	DefaultAnalysisInterpreter = "python3"
	DefaultAnalysisScript      = "if_analysis_works.py"
	DefaultStatsInterpreter    = "Rscript"
	DefaultStatsScript         = "min_working_example-before_graph_analysis_Apr12.r"
)

// Task is an external program run once per iteration.
//
// Task is immutable after creation via [NewTask]. Getters return copies of
// slices and maps, so a Task cannot be modified after construction.
//
// Tasks are configured using [TaskOption] functions such as [WithArgs],
// [WithDir], [WithEnv], and [WithTaskTimeout].
type Task struct {
	name    string
	command string
	args    []string
	dir     string
	env     map[string]string
	timeout time.Duration
}

// Name returns the task's display name, used in progress lines and logs.
func (t Task) Name() string {
	return t.name
}

// Command returns the program to execute.
func (t Task) Command() string {
	return t.command
}

// Args returns a copy of the arguments passed to the program.
func (t Task) Args() []string {
	if t.args == nil {
		return nil
	}
	return append([]string(nil), t.args...)
}

// Dir returns the working directory. Empty means the current directory.
func (t Task) Dir() string {
	return t.dir
}

// Env returns a copy of the extra environment variables for the task.
// Returns nil if none are set.
func (t Task) Env() map[string]string {
	return copyMap(t.env)
}

// Timeout returns the per-run timeout. Zero means the task may run for as
// long as it needs.
func (t Task) Timeout() time.Duration {
	return t.timeout
}

// String returns the task's command line.
func (t Task) String() string {
	return strings.Join(append([]string{t.command}, t.args...), " ")
}

// NewTask creates a [Task] with the given display name, program, and options.
//
// Returns an error if the name or command is empty.
//
// Example:
//
//	task, err := taskloop.NewTask("stats", "Rscript",
//	    taskloop.WithArgs("analysis.r"),
//	    taskloop.WithTaskTimeout(10 * time.Minute),
//	)
func NewTask(name, command string, opts ...TaskOption) (Task, error) {
	if name == "" {
		return Task{}, errors.New("task name cannot be empty")
	}
	if strings.TrimSpace(command) == "" {
		return Task{}, errors.New("task command cannot be empty")
	}

	cfg := &taskConfig{
		env: make(map[string]string),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Task{}, err
		}
	}

	return Task{
		name:    name,
		command: command,
		args:    cfg.args,
		dir:     cfg.dir,
		env:     cfg.env,
		timeout: cfg.timeout,
	}, nil
}

// DefaultTasks returns the two sub-tasks a session runs when none are
// configured: the Python analysis script followed by the R statistics script.
// Each task is named after its script file.
func DefaultTasks() []Task {
	analysis, _ := NewTask(DefaultAnalysisScript, DefaultAnalysisInterpreter,
		WithArgs(DefaultAnalysisScript))
	stats, _ := NewTask(DefaultStatsScript, DefaultStatsInterpreter,
		WithArgs(DefaultStatsScript))
	return []Task{analysis, stats}
}

// toCommand converts a Task to the runner's representation.
func (t Task) toCommand() runner.Command {
	return runner.Command{
		Name:    t.name,
		Path:    t.command,
		Args:    t.Args(),
		Dir:     t.dir,
		Env:     envList(t.env),
		Timeout: t.timeout,
	}
}

// envList converts a map to sorted "KEY=value" entries.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}

	// sort keys for deterministic ordering
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
