package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/taskloop"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// two shell tasks standing in for the analysis scripts
	collect, err := taskloop.NewTask("collect", "sh",
		taskloop.WithArgs("-c", "echo collecting from $SOURCE"),
		taskloop.WithEnv("SOURCE", "sensor-a"),
	)
	if err != nil {
		logger.Error("failed to create task", "error", err)
		os.Exit(1)
	}

	// exits non-zero on purpose, the loop carries on
	report, err := taskloop.NewTask("report", "sh",
		taskloop.WithArgs("-c", "echo report failed >&2; exit 3"),
		taskloop.WithTaskTimeout(5*time.Second),
	)
	if err != nil {
		logger.Error("failed to create task", "error", err)
		os.Exit(1)
	}

	session, err := taskloop.New(
		taskloop.WithTasks(collect, report),
		taskloop.WithDuration(10*time.Second),
		taskloop.WithInterval(3*time.Second),
		taskloop.WithLogger(logger),
		taskloop.WithResultCallback(func(r taskloop.TaskResult) {
			if r.Failed() {
				logger.Warn("task failed", "task", r.TaskName, "iteration", r.Iteration, "exit_code", r.ExitCode)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := session.Run(ctx)
	if err != nil {
		logger.Error("session error", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\n%d iterations, %d runs, %d failed, overshoot %s\n",
		summary.Iterations, summary.TaskRuns, summary.FailedRuns, summary.Overshoot())
}
