package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"img2imgd/internal/engine"
)

// Trigger requests one generation. It is accepted only in Ready; in every
// other state it is dropped without capturing parameters. The returned run ID
// is empty when dropped.
func (o *Orchestrator) Trigger() (string, bool) {
	return o.tryBegin("trigger", false)
}

// tryBegin performs the Ready -> Running transition. When due is set the
// caller is the unattended poll loop: the idle gap applies and a refusal is
// not counted as a dropped trigger.
func (o *Orchestrator) tryBegin(origin string, due bool) (string, bool) {
	o.mu.Lock()
	if o.state != StateReady || (due && (!o.idleGapElapsed(time.Now()) || o.budgetSpent())) {
		st := o.state
		if !due {
			o.dropped++
		}
		o.mu.Unlock()
		if !due {
			triggersTotal.WithLabelValues("dropped").Inc()
			o.publish(EventTriggerDropped, "", map[string]any{"state": string(st), "origin": origin})
			o.log.Debug().Str("event", EventTriggerDropped).Str("state", string(st)).Msg("trigger ignored")
		}
		return "", false
	}
	// The single point where current inputs become this run's parameters.
	p := o.params.Capture()
	id := uuid.NewString()
	o.setState(StateRunning)
	o.status = StatusGenerating
	o.runInFlight = true
	if due {
		o.polled++
	}
	o.wg.Add(1)
	o.mu.Unlock()

	triggersTotal.WithLabelValues("accepted").Inc()
	o.publish(EventRunStart, id, map[string]any{"origin": origin, "params": p})
	o.log.Info().Str("event", EventRunStart).Str("run_id", id).Str("origin", origin).
		Int("steps", p.Steps).Int64("seed", p.Seed).Float64("strength", p.Strength).Msg("generation started")
	go o.run(id, p)
	return id, true
}

// budgetSpent reports whether unattended polling has used up MaxRuns. Must be
// called with o.mu held.
func (o *Orchestrator) budgetSpent() bool {
	return o.cfg.MaxRuns > 0 && o.polled >= uint64(o.cfg.MaxRuns)
}

// idleGapElapsed must be called with o.mu held.
func (o *Orchestrator) idleGapElapsed(now time.Time) bool {
	if o.cfg.IdleGap <= 0 || o.lastDone.IsZero() {
		return true
	}
	return now.Sub(o.lastDone) >= o.cfg.IdleGap
}

func (o *Orchestrator) run(id string, p engine.Params) {
	defer o.wg.Done()
	defer o.notifySettled()

	// Teardown never cancels a run; only RunTimeout bounds it.
	ctx := context.Background()
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}
	started := time.Now()
	o.outMu.Lock()
	t0 := time.Now()
	err := o.pipe.Generate(ctx, o.cfg.Source, p, o.pipe.Output())
	dur := time.Since(t0)
	if err == nil && o.cfg.OutputSink != nil {
		o.cfg.OutputSink(id, o.pipe.Output())
	}
	o.outMu.Unlock()
	observeRun(err == nil, dur)

	o.mu.Lock()
	o.lastRunID = id
	o.lastDuration = dur
	pc := p
	o.lastParams = &pc
	o.lastDone = time.Now()
	o.runInFlight = false
	if err != nil {
		o.failures++
		o.status = StatusGenFailedPrefix + cause(err)
	} else {
		o.runs++
		o.hasOutput = true
		o.status = formatDuration(dur)
	}
	if o.state == StateRunning {
		o.setState(StateReady)
	}
	o.mu.Unlock()

	rec := RunRecord{ID: id, StartedAt: started, Duration: dur, Params: p, Outcome: OutcomeSucceeded}
	if err != nil {
		rec.Outcome = OutcomeFailed
		rec.Error = cause(err)
		o.publish(EventRunFailed, id, map[string]any{"error": rec.Error, "dur_ms": dur.Milliseconds()})
		o.log.Warn().Str("event", EventRunFailed).Str("run_id", id).Err(err).Dur("dur", dur).Msg("generation failed")
	} else {
		o.publish(EventRunDone, id, map[string]any{"dur_ms": dur.Milliseconds(), "status": formatDuration(dur)})
		o.log.Info().Str("event", EventRunDone).Str("run_id", id).Dur("dur", dur).Msg("generation finished")
	}
	if o.cfg.Recorder != nil {
		if rerr := o.cfg.Recorder.RecordRun(context.Background(), rec); rerr != nil {
			o.log.Error().Err(rerr).Str("run_id", id).Msg("record run")
		}
	}
}
