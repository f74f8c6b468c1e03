// Package main is the entry point for the taskloop CLI.
//
// taskloop can be used as a library (SDK) or as a standalone binary with an
// optional YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	taskloop run                      # Run the default 30 minute session
//	taskloop run -c taskloop.yaml     # Run a configured session
//	taskloop validate -c taskloop.yaml
//	taskloop version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "taskloop",
	Short: "Run analysis scripts on a timer for a bounded session",
	Long: `taskloop repeatedly runs a fixed list of external programs.

Each iteration runs every task in order, waiting for it to exit, then
sleeps for a fixed interval. The session ends at the first iteration
boundary after the configured duration has elapsed.

Without a config file, taskloop runs "python3 if_analysis_works.py" and
then "Rscript min_working_example-before_graph_analysis_Apr12.r" every
3 minutes for 30 minutes.

Example config:
  duration: 30m
  interval: 3m
  tasks:
    - command: python3
      args: [if_analysis_works.py]
    - command: Rscript
      args: [min_working_example-before_graph_analysis_Apr12.r]`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this taskloop binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "taskloop %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
