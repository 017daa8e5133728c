package orchestrator

import "time"

// Event represents an orchestrator lifecycle event.
// Minimal and stable: name + run ID and optional fields via key/values.
type Event struct {
	Name   string
	RunID  string
	At     time.Time
	Fields map[string]any
}

// Event names.
const (
	EventInitStart      = "init_start"
	EventInitReady      = "init_ready"
	EventInitFailed     = "init_failed"
	EventRunStart       = "run_start"
	EventRunDone        = "run_done"
	EventRunFailed      = "run_failed"
	EventTriggerDropped = "trigger_dropped"
	EventDisposeStart   = "dispose_start"
	EventDisposeDone    = "dispose_done"
)

// EventPublisher receives events from the orchestrator. Implementations should
// be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (o *Orchestrator) publish(name, runID string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	o.pub.Publish(Event{Name: name, RunID: runID, At: time.Now(), Fields: fields})
}
