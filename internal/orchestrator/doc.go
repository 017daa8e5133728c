// Package orchestrator drives a single image-to-image pipeline: it loads the
// engine once, accepts generation triggers one at a time, captures parameters
// at the instant a run starts, and projects results into a status line, an
// output buffer, events, metrics and an optional run recorder. It is
// structured into small files by concern:
//
//   - orchestrator.go: Orchestrator type, constructor, simple getters.
//   - config.go: Config, Mode and package defaults.
//   - types.go: State, Snapshot, RunRecord.
//   - errors.go: sentinels returned by Start and ReadOutput.
//   - lifecycle.go: Start and the initialization goroutine.
//   - trigger.go: single-flight admission and the run goroutine.
//   - poll.go: Poll, Run and Wait for the unattended drive loop.
//   - close.go: deferred, idempotent teardown.
//   - status.go: status text and Snapshot.
//   - output.go: guarded access to the output buffer.
//   - events.go, eventpub_*.go: event publishing.
//   - metrics.go: Prometheus collectors.
//
// State machine:
//
//	Uninitialized -> Initializing -> Ready <-> Running
//	any state -> Disposed
//
// An initialization failure leaves the orchestrator in Initializing with
// Snapshot.InitFailed set until Start is called again.
package orchestrator
