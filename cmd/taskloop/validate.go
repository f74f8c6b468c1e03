package main

import (
	"fmt"

	"github.com/jpalmerr/taskloop/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without running a session.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a taskloop configuration file without running any tasks.

This command parses the YAML, expands environment variables, and validates
all fields. It does not check that the task programs exist.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  taskloop validate -c taskloop.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// build the tasks too so SDK-level validation runs
	if _, err := config.BuildTasks(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Duration: %s\n", cfg.Duration.Duration())
	fmt.Fprintf(out, "  Interval: %s\n", cfg.Interval.Duration())
	fmt.Fprintf(out, "  Tasks:    %d\n", len(cfg.Tasks))
	for i, tc := range cfg.Tasks {
		line := tc.Command
		for _, a := range tc.Args {
			line += " " + a
		}
		fmt.Fprintf(out, "    %d. %s: %s\n", i+1, tc.Name, line)
	}

	return nil
}
