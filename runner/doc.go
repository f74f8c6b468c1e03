// Package runner executes the external sub-tasks driven by a taskloop session.
//
// The main components are:
//
//   - [Command]: what to run (program, arguments, directory, environment)
//   - [Result]: exit code, timing, and any launch or timeout error
//   - [Runner]: the capability the session depends on
//   - [Exec]: the [os/exec] implementation used in production
//
// A Runner never returns an error separately. Failures are captured in
// [Result] so the session can record them and carry on.
package runner
