package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/taskloop"
)

// BuildTasks converts parsed configuration into SDK Task objects, in order.
func BuildTasks(cfg *Config) ([]taskloop.Task, error) {
	tasks := make([]taskloop.Task, 0, len(cfg.Tasks))
	for i, tc := range cfg.Tasks {
		t, err := buildTask(tc)
		if err != nil {
			return nil, fmt.Errorf("tasks[%d] (%s): %w", i, tc.Name, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// BuildOptions converts parsed configuration into session options: the
// task list, duration, and interval.
func BuildOptions(cfg *Config) ([]taskloop.Option, error) {
	tasks, err := BuildTasks(cfg)
	if err != nil {
		return nil, err
	}

	return []taskloop.Option{
		taskloop.WithTasks(tasks...),
		taskloop.WithDuration(cfg.Duration.Duration()),
		taskloop.WithInterval(cfg.Interval.Duration()),
	}, nil
}

// buildTask converts a single TaskConfig to an SDK Task.
func buildTask(tc TaskConfig) (taskloop.Task, error) {
	var opts []taskloop.TaskOption

	if len(tc.Args) > 0 {
		opts = append(opts, taskloop.WithArgs(tc.Args...))
	}

	if tc.Dir != "" {
		opts = append(opts, taskloop.WithDir(tc.Dir))
	}

	if len(tc.Env) > 0 {
		opts = append(opts, taskloop.WithEnv(mapToKeyValuePairs(tc.Env)...))
	}

	if tc.Timeout != 0 {
		opts = append(opts, taskloop.WithTaskTimeout(tc.Timeout.Duration()))
	}

	name := tc.Name
	if name == "" {
		name = defaultTaskName(&tc)
	}

	return taskloop.NewTask(name, tc.Command, opts...)
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
