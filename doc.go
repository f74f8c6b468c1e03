// Package taskloop runs a fixed list of external programs repeatedly, on a
// fixed interval, for a bounded wall-clock session.
//
// Each iteration runs every task in order and waits for it to exit, ignoring
// its exit status, then sleeps. The deadline is checked only before an
// iteration starts, so the session can run past it by up to one iteration.
// Progress is reported as plain lines on an [io.Writer]:
//
//	if_analysis_works.py DONE! On to min_working_example-before_graph_analysis_Apr12.r
//	min_working_example-before_graph_analysis_Apr12.r DONE! Sleeping for 3m0s!
//	Sleep done! Iteration #2!
//	...
//	2024-04-12 09:31:04 Done!
//
// # Quick Start
//
// With no options a session runs the default analysis and statistics
// scripts every 3 minutes for 30 minutes:
//
//	s, _ := taskloop.New()
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	summary, err := s.Run(ctx)
//
// # Configuration
//
// Sessions and tasks use the functional options pattern:
//
//	stats, err := taskloop.NewTask("stats", "Rscript",
//	    taskloop.WithArgs("analysis.r"),
//	    taskloop.WithDir("/srv/analysis"),
//	    taskloop.WithTaskTimeout(10 * time.Minute),
//	)
//
//	s, err := taskloop.New(
//	    taskloop.WithTasks(prepare, stats),
//	    taskloop.WithDuration(time.Hour),
//	    taskloop.WithInterval(5 * time.Minute),
//	)
//
// # Testing
//
// The time source and the program runner are injectable. A [clock.Fake]
// with a fake [runner.Runner] runs a complete session instantly:
//
//	s, _ := taskloop.New(
//	    taskloop.WithClock(clock.NewFake(time.Now())),
//	    taskloop.WithRunner(myFakeRunner),
//	)
//
// # Architecture
//
//   - runner: executes external programs ([runner.Exec] in production)
//   - clock: wall clock and a manual fake
//   - config: YAML configuration for the taskloop binary
//   - internal/poller: the timed loop itself
//   - internal/store: in-memory history of task runs
//
// The internal packages are not part of the public API and may change
// without notice.
package taskloop
