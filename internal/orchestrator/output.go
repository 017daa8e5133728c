package orchestrator

import "image"

// ReadOutput calls fn with the output buffer of the last successful run. fn
// must not retain the buffer. A run triggered while fn executes waits for fn
// to return before writing.
func (o *Orchestrator) ReadOutput(fn func(*image.RGBA) error) error {
	o.mu.Lock()
	st, has := o.state, o.hasOutput
	o.mu.Unlock()
	switch st {
	case StateDisposed:
		return ErrDisposed
	case StateRunning:
		return ErrBusy
	case StateReady:
		if !has {
			return ErrNoOutput
		}
	default:
		return ErrNotReady
	}
	o.outMu.RLock()
	defer o.outMu.RUnlock()
	buf := o.pipe.Output()
	if buf == nil {
		return ErrDisposed
	}
	return fn(buf)
}
