// Package config provides YAML configuration parsing for taskloop.
//
// This package enables running taskloop as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
// Every key is optional; an empty file yields the default session.
//
// Example configuration:
//
//	duration: 30m
//	interval: 3m
//
//	tasks:
//	  - command: python3
//	    args: [if_analysis_works.py]
//	  - name: stats
//	    command: Rscript
//	    args: [min_working_example-before_graph_analysis_Apr12.r]
//	    dir: ${ANALYSIS_DIR:-.}
//	    env:
//	      R_LIBS_USER: /opt/r-libs
//	    timeout: 10m
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jpalmerr/taskloop"
	"gopkg.in/yaml.v3"
)

// minInterval is the minimum allowed sleep between iterations.
// This prevents a typo such as "3ms" from spinning the analysis scripts.
const minInterval = 1 * time.Second

// Config is the root configuration structure for taskloop.
//
// It maps directly to the YAML configuration file structure.
// Use [Load], [Parse], or [Default] to create a Config.
type Config struct {
	// Duration is the total session length. Zero or omitted means the
	// default of 30m; a negative value is rejected.
	Duration Duration `yaml:"duration"`

	// Interval is the sleep after each iteration. Zero or omitted means the
	// default of 3m; any other value must be at least 1s.
	Interval Duration `yaml:"interval"`

	// Tasks run in order on every iteration. Defaults to the Python
	// analysis script followed by the R statistics script.
	Tasks []TaskConfig `yaml:"tasks"`
}

// TaskConfig defines a single external program run each iteration.
type TaskConfig struct {
	// Name is the display name used in progress lines.
	// Defaults to the last argument, or the command if there are none.
	Name string `yaml:"name"`

	// Command is the program to run, looked up in PATH.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Command string `yaml:"command"`

	// Args are passed to the program. Values support env substitution.
	Args []string `yaml:"args"`

	// Dir is the working directory. Supports env substitution.
	Dir string `yaml:"dir"`

	// Env holds extra environment variables for the program.
	// Values support env substitution.
	Env map[string]string `yaml:"env"`

	// Timeout kills a run that takes longer. Zero means no limit.
	// Must be at least 1s if specified.
	Timeout Duration `yaml:"timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Defaults are applied for Duration (30m), Interval (3m), and Tasks (the
// two default scripts). Environment variables are expanded in task
// commands, args, dirs, and env values.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in unset top-level values. An explicit zero duration
// or interval counts as unset.
func (c *Config) applyDefaults() {
	if c.Duration == 0 {
		c.Duration = Duration(taskloop.DefaultDuration)
	}
	if c.Interval == 0 {
		c.Interval = Duration(taskloop.DefaultInterval)
	}
	if len(c.Tasks) == 0 {
		for _, t := range taskloop.DefaultTasks() {
			c.Tasks = append(c.Tasks, TaskConfig{
				Name:    t.Name(),
				Command: t.Command(),
				Args:    t.Args(),
			})
		}
	}
}

// Validate checks a Config that was built or modified in code, for example
// after command-line overrides.
func (c *Config) Validate() error {
	if c.Duration.Duration() <= 0 {
		return fmt.Errorf("duration must be positive, got %s", c.Duration.Duration())
	}
	if c.Interval.Duration() < minInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minInterval, c.Interval.Duration())
	}
	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if err := c.Validate(); err != nil {
		return err
	}

	seen := make(map[string]int, len(c.Tasks))
	for i := range c.Tasks {
		tc := &c.Tasks[i]

		if strings.TrimSpace(tc.Command) == "" {
			return fmt.Errorf("tasks[%d]: command is required", i)
		}
		expanded, err := expandEnvVars(tc.Command)
		if err != nil {
			return fmt.Errorf("tasks[%d]: command: %w", i, err)
		}
		tc.Command = expanded

		for j, arg := range tc.Args {
			expanded, err := expandEnvVars(arg)
			if err != nil {
				return fmt.Errorf("tasks[%d]: args[%d]: %w", i, j, err)
			}
			tc.Args[j] = expanded
		}

		if tc.Name == "" {
			tc.Name = defaultTaskName(tc)
		}

		if prev, exists := seen[tc.Name]; exists {
			return fmt.Errorf("tasks[%d] (%s): duplicate name, also used by tasks[%d]", i, tc.Name, prev)
		}
		seen[tc.Name] = i

		if tc.Dir != "" {
			expanded, err := expandEnvVars(tc.Dir)
			if err != nil {
				return fmt.Errorf("tasks[%d] (%s): dir: %w", i, tc.Name, err)
			}
			tc.Dir = expanded
		}

		for k, v := range tc.Env {
			if k == "" || strings.Contains(k, "=") {
				return fmt.Errorf("tasks[%d] (%s): invalid env name %q", i, tc.Name, k)
			}
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("tasks[%d] (%s): env[%s]: %w", i, tc.Name, k, err)
			}
			tc.Env[k] = expanded
		}

		if tc.Timeout != 0 {
			if tc.Timeout.Duration() < 0 {
				return fmt.Errorf("tasks[%d] (%s): timeout cannot be negative, got %s",
					i, tc.Name, tc.Timeout.Duration())
			}
			if tc.Timeout.Duration() < time.Second {
				return fmt.Errorf("tasks[%d] (%s): timeout must be at least 1s if specified, got %s",
					i, tc.Name, tc.Timeout.Duration())
			}
		}
	}

	return nil
}

// defaultTaskName names a task after its last argument (usually the script
// file), falling back to the command.
func defaultTaskName(tc *TaskConfig) string {
	if len(tc.Args) > 0 && tc.Args[len(tc.Args)-1] != "" {
		return tc.Args[len(tc.Args)-1]
	}
	return tc.Command
}
