package poller

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/taskloop/clock"
	"github.com/jpalmerr/taskloop/runner"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var sessionStart = time.Date(2024, 4, 12, 9, 0, 0, 0, time.UTC)

// event is one entry in the fake timeline: a task start/finish or a sleep.
type event struct {
	kind string // "start", "finish", "sleep"
	name string
	at   time.Time
}

// timeline records events from the fake runner and clock in order.
type timeline struct {
	mu     sync.Mutex
	events []event
}

func (tl *timeline) add(kind, name string, at time.Time) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.events = append(tl.events, event{kind: kind, name: name, at: at})
}

func (tl *timeline) snapshot() []event {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return append([]event(nil), tl.events...)
}

// fakeRunner records invocations, advances the fake clock by a per-task
// duration, and returns a configurable exit code.
type fakeRunner struct {
	clock     *clock.Fake
	timeline  *timeline
	durations map[string]time.Duration
	exitCodes map[string]int
	errs      map[string]error
	panics    map[string]bool
	hook      func(cmd runner.Command)

	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) Run(ctx context.Context, cmd runner.Command) runner.Result {
	f.mu.Lock()
	f.calls = append(f.calls, cmd.Name)
	f.mu.Unlock()

	start := f.clock.Now()
	if f.timeline != nil {
		f.timeline.add("start", cmd.Name, start)
	}
	if f.hook != nil {
		f.hook(cmd)
	}
	if f.panics[cmd.Name] {
		panic("boom")
	}
	f.clock.Advance(f.durations[cmd.Name])
	finish := f.clock.Now()
	if f.timeline != nil {
		f.timeline.add("finish", cmd.Name, finish)
	}

	return runner.Result{
		ExitCode:   f.exitCodes[cmd.Name],
		StartedAt:  start,
		FinishedAt: finish,
		Error:      f.errs[cmd.Name],
	}
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingClock wraps a fake clock and records sleeps on the timeline.
type recordingClock struct {
	*clock.Fake
	timeline *timeline
}

func (c recordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.timeline.add("sleep", "", c.Fake.Now())
	return c.Fake.Sleep(ctx, d)
}

func twoCommands() []runner.Command {
	return []runner.Command{
		{Name: "analysis.py", Path: "python3", Args: []string{"analysis.py"}},
		{Name: "stats.r", Path: "Rscript", Args: []string{"stats.r"}},
	}
}

func newTestLoop(fc clock.Clock, r runner.Runner, out io.Writer, duration, interval time.Duration) *Loop {
	return NewLoop(Config{
		SessionID: "test-session",
		Commands:  twoCommands(),
		Duration:  duration,
		Interval:  interval,
		Runner:    r,
		Clock:     fc,
		Output:    out,
		Logger:    testLogger(),
	})
}

func TestLoop_LiteralScenario(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{clock: fc}
	var out bytes.Buffer

	loop := newTestLoop(fc, fr, &out, 9*time.Second, 3*time.Second)
	summary, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", summary.Iterations)
	}
	if summary.TaskRuns != 6 {
		t.Errorf("TaskRuns = %d, want 6", summary.TaskRuns)
	}

	wantCalls := []string{"analysis.py", "stats.r", "analysis.py", "stats.r", "analysis.py", "stats.r"}
	if got := fr.Calls(); strings.Join(got, ",") != strings.Join(wantCalls, ",") {
		t.Errorf("calls = %v, want %v", got, wantCalls)
	}

	if got := strings.Count(out.String(), "Done!\n"); got != 1 {
		t.Errorf("final line printed %d times, want 1\n%s", got, out.String())
	}
}

func TestLoop_ConsoleProtocol(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{clock: fc}
	var out bytes.Buffer

	loop := newTestLoop(fc, fr, &out, 5*time.Second, 3*time.Second)
	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	finish := sessionStart.Add(6 * time.Second).Local().Format(TimestampLayout)
	want := strings.Join([]string{
		"analysis.py DONE! On to stats.r",
		"stats.r DONE! Sleeping for 3s!",
		"Sleep done! Iteration #2!",
		"analysis.py DONE! On to stats.r",
		"stats.r DONE! Sleeping for 3s!",
		"Sleep done! Iteration #3!",
		finish + " Done!",
	}, "\n") + "\n"

	if got := out.String(); got != want {
		t.Errorf("output mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestLoop_IterationCountMatchesCeil(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		interval time.Duration
		want     int
	}{
		{"exact multiple", 30 * time.Minute, 3 * time.Minute, 10},
		{"remainder", 10 * time.Second, 3 * time.Second, 4},
		{"interval longer than duration", time.Second, time.Minute, 1},
		{"single interval", 3 * time.Second, 3 * time.Second, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := clock.NewFake(sessionStart)
			fr := &fakeRunner{clock: fc}

			loop := newTestLoop(fc, fr, io.Discard, tt.duration, tt.interval)
			summary, err := loop.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if summary.Iterations != tt.want {
				t.Errorf("Iterations = %d, want %d", summary.Iterations, tt.want)
			}

			elapsed := summary.FinishedAt.Sub(summary.StartedAt)
			lower := time.Duration(tt.want-1) * tt.interval
			upper := time.Duration(tt.want) * tt.interval
			if elapsed < lower || elapsed > upper {
				t.Errorf("elapsed = %v, want within [%v, %v]", elapsed, lower, upper)
			}
		})
	}
}

func TestLoop_StrictSequencing(t *testing.T) {
	tl := &timeline{}
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{
		clock:    fc,
		timeline: tl,
		durations: map[string]time.Duration{
			"analysis.py": 20 * time.Second,
			"stats.r":     40 * time.Second,
		},
	}

	loop := newTestLoop(recordingClock{Fake: fc, timeline: tl}, fr, io.Discard, 10*time.Minute, 3*time.Minute)
	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	events := tl.snapshot()
	wantKinds := []string{"start", "finish", "start", "finish", "sleep"}
	if len(events)%len(wantKinds) != 0 || len(events) == 0 {
		t.Fatalf("got %d events, want a multiple of %d", len(events), len(wantKinds))
	}

	for i, ev := range events {
		if want := wantKinds[i%len(wantKinds)]; ev.kind != want {
			t.Fatalf("event %d kind = %q, want %q", i, ev.kind, want)
		}
		if i > 0 && ev.at.Before(events[i-1].at) {
			t.Errorf("event %d at %v is before event %d at %v", i, ev.at, i-1, events[i-1].at)
		}
	}

	// within each iteration: A finish <= B start, B finish <= sleep
	for i := 0; i < len(events); i += len(wantKinds) {
		aFinish, bStart, bFinish, sleep := events[i+1], events[i+2], events[i+3], events[i+4]
		if aFinish.name != "analysis.py" || bStart.name != "stats.r" {
			t.Errorf("iteration at event %d ran tasks out of order", i)
		}
		if bStart.at.Before(aFinish.at) {
			t.Errorf("stats.r started at %v before analysis.py finished at %v", bStart.at, aFinish.at)
		}
		if sleep.at.Before(bFinish.at) {
			t.Errorf("sleep began at %v before stats.r finished at %v", sleep.at, bFinish.at)
		}
	}
}

func TestLoop_SubTaskFailureTolerance(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{
		clock:     fc,
		exitCodes: map[string]int{"analysis.py": 1, "stats.r": 2},
		errs:      map[string]error{"stats.r": errors.New("exec: \"Rscript\": executable file not found in $PATH")},
	}
	var out bytes.Buffer

	loop := newTestLoop(fc, fr, &out, 9*time.Second, 3*time.Second)
	summary, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil despite failing tasks", err)
	}

	if summary.Iterations != 3 {
		t.Errorf("Iterations = %d, want 3", summary.Iterations)
	}
	if summary.FailedRuns != 6 {
		t.Errorf("FailedRuns = %d, want 6", summary.FailedRuns)
	}
	if strings.Contains(strings.ToLower(out.String()), "error") {
		t.Errorf("console output should not contain loop error messages:\n%s", out.String())
	}
	if got := strings.Count(out.String(), "Done!\n"); got != 1 {
		t.Errorf("final line printed %d times, want 1", got)
	}
}

func TestLoop_DeadlineCheckedOnlyAtTop(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	// each iteration: 2m of work + 3m sleep = 5m, deadline at 7m falls mid iteration 2
	fr := &fakeRunner{
		clock: fc,
		durations: map[string]time.Duration{
			"analysis.py": time.Minute,
			"stats.r":     time.Minute,
		},
	}

	loop := newTestLoop(fc, fr, io.Discard, 7*time.Minute, 3*time.Minute)
	summary, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", summary.Iterations)
	}
	if len(fr.Calls()) != 4 {
		t.Errorf("calls = %d, want 4 (iteration 2 runs to completion)", len(fr.Calls()))
	}

	wantFinish := sessionStart.Add(10 * time.Minute)
	if !summary.FinishedAt.Equal(wantFinish) {
		t.Errorf("FinishedAt = %v, want %v (full overshoot, no compensation)", summary.FinishedAt, wantFinish)
	}

	sleeps := fc.Sleeps()
	for i, d := range sleeps {
		if d != 3*time.Minute {
			t.Errorf("sleep %d = %v, want 3m (final sleep is not shortened)", i, d)
		}
	}
}

func TestLoop_ZeroIterationsStillPrintsFinalLineOnce(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{clock: fc}
	var out bytes.Buffer

	// a zero duration means the deadline has already been reached at the first check
	loop := newTestLoop(fc, fr, &out, 0, 3*time.Second)
	summary, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", summary.Iterations)
	}
	if len(fr.Calls()) != 0 {
		t.Errorf("calls = %v, want none", fr.Calls())
	}

	want := sessionStart.Local().Format(TimestampLayout) + " Done!\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestLoop_ResultCallbackOrder(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{clock: fc, exitCodes: map[string]int{"stats.r": 4}}
	var out bytes.Buffer

	var results []Result
	loop := NewLoop(Config{
		SessionID: "cb-session",
		Commands:  twoCommands(),
		Duration:  3 * time.Second,
		Interval:  3 * time.Second,
		Runner:    fr,
		Clock:     fc,
		Output:    &out,
		Logger:    testLogger(),
		OnResult: func(r Result) {
			results = append(results, r)
			// the progress line for this run must not be printed yet
			if strings.Contains(out.String(), r.TaskName+" DONE!") {
				t.Errorf("progress line for %s printed before callback", r.TaskName)
			}
		},
	})

	if _, err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].TaskName != "analysis.py" || results[1].TaskName != "stats.r" {
		t.Errorf("results out of order: %+v", results)
	}
	for _, r := range results {
		if r.SessionID != "cb-session" {
			t.Errorf("SessionID = %q, want %q", r.SessionID, "cb-session")
		}
		if r.Iteration != 1 {
			t.Errorf("Iteration = %d, want 1", r.Iteration)
		}
	}
	if results[1].ExitCode != 4 || !results[1].Failed() {
		t.Errorf("stats.r result = %+v, want exit code 4 and Failed()", results[1])
	}
}

func TestLoop_CancelDuringTask(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fr := &fakeRunner{
		clock: fc,
		hook: func(cmd runner.Command) {
			if cmd.Name == "stats.r" {
				cancel()
			}
		},
	}
	var out bytes.Buffer

	var results []Result
	loop := newTestLoop(fc, fr, &out, 30*time.Minute, 3*time.Minute)
	loop.cfg.OnResult = func(r Result) { results = append(results, r) }

	summary, err := loop.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if summary.TaskRuns != 2 {
		t.Errorf("TaskRuns = %d, want 2", summary.TaskRuns)
	}
	if len(results) != summary.TaskRuns {
		t.Fatalf("observer saw %d results, summary counted %d runs", len(results), summary.TaskRuns)
	}
	if results[1].TaskName != "stats.r" {
		t.Errorf("last result = %s, want the interrupted stats.r run", results[1].TaskName)
	}

	if summary.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", summary.Iterations)
	}
	if len(fc.Sleeps()) != 0 {
		t.Errorf("slept %v after cancellation, want no sleep", fc.Sleeps())
	}
	if strings.Contains(out.String(), "Done!\n") {
		t.Errorf("final line printed after interruption:\n%s", out.String())
	}
	if strings.Contains(out.String(), "stats.r DONE!") {
		t.Errorf("interrupted task reported as done:\n%s", out.String())
	}
}

func TestLoop_CancelDuringSleep(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	ctx, cancel := context.WithCancel(context.Background())

	c := &cancellingClock{Fake: fc, cancel: cancel}
	fr := &fakeRunner{clock: fc}
	var out bytes.Buffer

	loop := newTestLoop(c, fr, &out, 30*time.Minute, 3*time.Minute)
	_, err := loop.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(fr.Calls()) != 2 {
		t.Errorf("calls = %d, want 2", len(fr.Calls()))
	}
	if strings.Contains(out.String(), "Sleep done!") {
		t.Errorf("sleep reported done after interruption:\n%s", out.String())
	}
}

// cancellingClock cancels the session context when Sleep is called.
type cancellingClock struct {
	*clock.Fake
	cancel context.CancelFunc
}

func (c *cancellingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.cancel()
	return c.Fake.Sleep(ctx, d)
}

func TestLoop_AlreadyCancelled(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{clock: fc}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := newTestLoop(fc, fr, io.Discard, time.Minute, time.Second)
	if _, err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(fr.Calls()) != 0 {
		t.Errorf("calls = %v, want none", fr.Calls())
	}
}

func TestLoop_RunnerPanicIsRecorded(t *testing.T) {
	fc := clock.NewFake(sessionStart)
	fr := &fakeRunner{clock: fc, panics: map[string]bool{"analysis.py": true}}
	var out bytes.Buffer

	var results []Result
	loop := NewLoop(Config{
		Commands: twoCommands(),
		Duration: 3 * time.Second,
		Interval: 3 * time.Second,
		Runner:   fr,
		Clock:    fc,
		Output:   &out,
		Logger:   testLogger(),
		OnResult: func(r Result) { results = append(results, r) },
	})

	summary, err := loop.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.FailedRuns != 1 {
		t.Errorf("FailedRuns = %d, want 1", summary.FailedRuns)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Error == nil || !strings.Contains(results[0].Error.Error(), "correlation_id") {
		t.Errorf("panic result error = %v, want correlation id", results[0].Error)
	}
	if !strings.Contains(out.String(), "stats.r DONE!") {
		t.Errorf("loop did not continue after runner panic:\n%s", out.String())
	}
}

func TestNewLoop_Defaults(t *testing.T) {
	loop := NewLoop(Config{})

	if loop.cfg.Runner == nil {
		t.Error("Runner should default to an exec runner")
	}
	if loop.cfg.Clock == nil {
		t.Error("Clock should default to the system clock")
	}
	if loop.cfg.Output == nil {
		t.Error("Output should default to io.Discard")
	}
	if loop.cfg.Logger == nil {
		t.Error("Logger should default to slog.Default()")
	}
}
