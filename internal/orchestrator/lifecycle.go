package orchestrator

import (
	"context"
	"time"
)

// Start begins engine initialization. New calls it automatically; callers use
// it again only to retry after an initialization failure.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	switch o.state {
	case StateDisposed:
		o.mu.Unlock()
		return ErrDisposed
	case StateUninitialized:
	case StateInitializing:
		if o.initInFlight || !o.initFailed {
			o.mu.Unlock()
			return ErrAlreadyStarted
		}
	default:
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	retry := o.initFailed
	o.setState(StateInitializing)
	o.status = StatusLoading
	o.initInFlight = true
	o.initFailed = false
	o.initErr = ""
	o.wg.Add(1)
	o.mu.Unlock()

	o.publish(EventInitStart, "", map[string]any{
		"resource_dir": o.cfg.Engine.ResourceDir,
		"target":       string(o.cfg.Engine.ComputeTarget),
		"retry":        retry,
	})
	o.log.Info().Str("event", EventInitStart).Str("resource_dir", o.cfg.Engine.ResourceDir).
		Str("target", string(o.cfg.Engine.ComputeTarget)).Bool("retry", retry).Msg("loading engine")
	go o.initialize()
	return nil
}

func (o *Orchestrator) initialize() {
	defer o.wg.Done()
	defer o.notifySettled()

	ctx := context.Background()
	if o.cfg.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.InitTimeout)
		defer cancel()
	}
	start := time.Now()
	err := o.pipe.Initialize(ctx, o.cfg.Engine)
	dur := time.Since(start)
	observeInit(err == nil, dur)

	o.mu.Lock()
	o.initInFlight = false
	if err != nil {
		o.initFailed = true
		o.initErr = cause(err)
		o.status = StatusInitFailedPrefix + o.initErr
	} else {
		o.status = ""
		if o.state == StateInitializing {
			o.setState(StateReady)
		}
	}
	o.mu.Unlock()

	if err != nil {
		o.publish(EventInitFailed, "", map[string]any{"error": cause(err), "dur_ms": dur.Milliseconds()})
		o.log.Error().Str("event", EventInitFailed).Err(err).Dur("dur", dur).Msg("engine initialization failed")
		return
	}
	o.publish(EventInitReady, "", map[string]any{"dur_ms": dur.Milliseconds()})
	o.log.Info().Str("event", EventInitReady).Dur("dur", dur).Msg("engine ready")
}
