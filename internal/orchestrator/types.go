package orchestrator

import (
	"context"
	"time"

	"img2imgd/internal/engine"
)

// State is the lifecycle state of the orchestrator.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateRunning       State = "running"
	StateDisposed      State = "disposed"
)

var allStates = []State{StateUninitialized, StateInitializing, StateReady, StateRunning, StateDisposed}

// Snapshot is a read-only projection of the orchestrator state.
type Snapshot struct {
	State          State
	Status         string
	TriggerEnabled bool
	Mode           Mode
	InitFailed     bool
	InitError      string
	LastRunID      string
	LastDuration   time.Duration
	LastParams     *engine.Params
	HasOutput      bool
	RunsTotal      uint64
	FailuresTotal  uint64
	DroppedTotal   uint64
	StartedAt      time.Time
}

// Run outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// RunRecord describes one finished run.
type RunRecord struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Params    engine.Params
	Outcome   string
	Error     string
}

// RunRecorder persists finished runs. Errors are logged and otherwise ignored.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}
