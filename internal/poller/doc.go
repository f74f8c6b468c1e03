// Package poller implements the timed polling loop behind a taskloop session.
//
// A [Loop] runs for a fixed wall-clock duration. Each iteration runs every
// configured command in order, waiting for each to exit, then sleeps for a
// fixed interval. The deadline is only checked at the top of an iteration,
// so a session can overshoot by up to one iteration.
//
// The main components are:
//
//   - [Loop]: the polling loop itself
//   - [Config]: everything a Loop needs, including the injected runner and clock
//   - [Result]: the outcome of one command run within an iteration
//   - [Summary]: totals for a finished or interrupted session
//
// Users of the taskloop library should not need to interact with this
// package directly. Configuration is done through the main taskloop package.
package poller
