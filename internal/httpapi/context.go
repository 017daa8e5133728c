package httpapi

import "context"

// serverBaseCtx ends long-lived /events and /ws streams on shutdown, before the
// server stops accepting connections. Background until set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level context streaming handlers watch.
// A nil ctx restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context derived from a that is also canceled when b
// is done. The returned func releases it.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
