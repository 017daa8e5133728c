package orchestrator

import (
	"fmt"
	"time"
)

// Status lines.
const (
	StatusLoading          = "Loading resources...\n(This takes a few minutes for the first time.)"
	StatusGenerating       = "Generating..."
	StatusInitFailedPrefix = "Initialization failed: "
	StatusGenFailedPrefix  = "Generation failed: "
)

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("Generation time: %.2f sec", d.Seconds())
}

// Status returns the current human-readable status line. It is advisory only.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Snapshot returns a read-only view of the orchestrator state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		State:          o.state,
		Status:         o.status,
		TriggerEnabled: o.state == StateReady,
		Mode:           o.cfg.Mode,
		InitFailed:     o.initFailed,
		InitError:      o.initErr,
		LastRunID:      o.lastRunID,
		LastDuration:   o.lastDuration,
		HasOutput:      o.hasOutput,
		RunsTotal:      o.runs,
		FailuresTotal:  o.failures,
		DroppedTotal:   o.dropped,
		StartedAt:      o.startedAt,
	}
	if o.lastParams != nil {
		p := *o.lastParams
		s.LastParams = &p
	}
	return s
}
