package orchestrator

import (
	"context"
	"time"
)

// Poll is the level-triggered scheduling hook. In unattended mode it starts a
// run whenever the orchestrator is Ready and the idle gap has elapsed, and
// reports whether it did. In interactive mode it does nothing.
func (o *Orchestrator) Poll() bool {
	if o.cfg.Mode != ModeUnattended {
		return false
	}
	_, ok := o.tryBegin("poll", true)
	return ok
}

// Run calls Poll on every tick and right after each init or run settles, so
// unattended runs follow each other without waiting for the next tick. It
// returns ctx.Err() when ctx ends and nil once the orchestrator is closed.
// No run is started once either has happened.
func (o *Orchestrator) Run(ctx context.Context) error {
	t := time.NewTicker(o.cfg.PollInterval)
	defer t.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-o.done:
			return nil
		default:
		}
		o.Poll()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.done:
			return nil
		case <-t.C:
		case <-o.settled:
		}
	}
}

// Wait blocks until no initialization or run is in flight.
func (o *Orchestrator) Wait(ctx context.Context) error {
	for {
		o.mu.Lock()
		busy := o.initInFlight || o.runInFlight
		o.mu.Unlock()
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Done is closed when Close is called.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }
