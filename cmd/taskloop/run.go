package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/taskloop"
	"github.com/jpalmerr/taskloop/config"
	"github.com/jpalmerr/taskloop/runner"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// newLogger creates the CLI logger. Format "json" writes one JSON object per
// line; "text" writes human-readable lines, colored unless NO_COLOR is set.
func newLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})), nil
	case "text":
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05.000",
			NoColor:    os.Getenv("NO_COLOR") != "",
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == "error" {
					return tint.Attr(9, a)
				}
				return a
			},
		})), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want json or text)", format)
	}
}

// runCmd runs a timed session.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a timed session",
	Long: `Run a timed taskloop session.

The session will:
  - Load configuration from the given YAML file, or use the defaults
  - Run every task in order, waiting for each to exit
  - Sleep for the interval, then repeat until the duration has elapsed
  - Print the finish time followed by "Done!"

Progress lines go to stdout; structured logs go to stderr. Task output is
passed through unchanged. A task that fails does not stop the session.

The session stops immediately on Ctrl+C or SIGTERM.

Example:
  taskloop run
  taskloop run -c taskloop.yaml
  taskloop run --duration 1h --interval 5m
  taskloop run --log-format text -v`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (defaults are used if omitted)")
	runCmd.Flags().Duration("duration", 0, "override the session duration (e.g. 30m)")
	runCmd.Flags().Duration("interval", 0, "override the sleep between iterations (e.g. 3m)")
	runCmd.Flags().BoolP("verbose", "v", false, "log every task run at debug level")
	runCmd.Flags().String("log-format", "json", "log format on stderr: json or text")
}

func runRun(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logFormat, _ := cmd.Flags().GetString("log-format")
	logger, err := newLogger(cmd.ErrOrStderr(), verbose, logFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"tasks", len(cfg.Tasks),
		"duration", cfg.Duration.Duration().String(),
		"interval", cfg.Interval.Duration().String(),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build tasks: %w", err)
	}

	opts = append(opts,
		taskloop.WithLogger(logger),
		taskloop.WithOutput(cmd.OutOrStdout()),
		taskloop.WithRunner(runner.NewExec(cmd.OutOrStdout(), cmd.ErrOrStderr())),
		taskloop.WithResultCallback(func(r taskloop.TaskResult) {
			logAttrs := []any{
				"session_id", r.SessionID,
				"task", r.TaskName,
				"iteration", r.Iteration,
				"exit_code", r.ExitCode,
				"duration_ms", r.Duration().Milliseconds(),
			}
			if r.Error != nil {
				logAttrs = append(logAttrs, "error", r.Error.Error())
			}
			logger.Debug("task result", logAttrs...)
		}),
	)

	session, err := taskloop.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	// cancel on SIGINT/SIGTERM; the running task is killed and the loop stops
	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := session.Run(ctx); err != nil {
		return err
	}
	return nil
}

// loadConfig reads the config file if one was given, applies flag
// overrides, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("duration") {
		d, _ := cmd.Flags().GetDuration("duration")
		cfg.Duration = config.Duration(d)
	}
	if cmd.Flags().Changed("interval") {
		d, _ := cmd.Flags().GetDuration("interval")
		cfg.Interval = config.Duration(d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// contextOrBackground guards against commands executed without a context.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
