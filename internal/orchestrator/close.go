package orchestrator

import "time"

// Close tears the orchestrator down. It marks the orchestrator Disposed at
// once so later triggers are dropped, waits for any in-flight init or run to
// settle, and then releases the pipeline. Only the first call does any work;
// every call returns the first call's result.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		prev := o.state
		o.setState(StateDisposed)
		o.mu.Unlock()
		close(o.done)

		o.publish(EventDisposeStart, "", map[string]any{"from": string(prev)})
		o.log.Info().Str("event", EventDisposeStart).Str("from", string(prev)).Msg("teardown requested")

		start := time.Now()
		o.wg.Wait()

		o.outMu.Lock()
		o.closeErr = o.pipe.Dispose()
		o.outMu.Unlock()

		fields := map[string]any{"waited_ms": time.Since(start).Milliseconds()}
		if o.closeErr != nil {
			fields["error"] = o.closeErr.Error()
			o.log.Error().Err(o.closeErr).Msg("release engine")
		}
		o.publish(EventDisposeDone, "", fields)
		o.log.Info().Str("event", EventDisposeDone).Msg("teardown complete")
	})
	return o.closeErr
}
