// Package monitor owns the periodic checking engine: the scheduling loop
// with cooperative start/stop, and the condition checkers that turn a
// product snapshot plus cached alert history into deduplicated
// notifications.
//
// Lifecycle is a one-way state machine: Idle -> Running -> StopRequested ->
// Stopped. Run is valid exactly once; Stop is idempotent, wakes the
// inter-cycle wait immediately, and returns only after the loop has fully
// exited, so callers can safely tear down shared resources afterwards.
package monitor
