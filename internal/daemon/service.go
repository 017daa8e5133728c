package daemon

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"img2imgd/internal/engine"
	"img2imgd/internal/orchestrator"
	"img2imgd/internal/params"
	"img2imgd/internal/registry"
	"img2imgd/pkg/types"
)

// DefaultRunsLimit is used by Runs when limit is not positive.
const DefaultRunsLimit = 20

// Status projects the orchestrator snapshot onto the API type.
func (d *Daemon) Status() types.StatusResponse {
	s := d.orch.Snapshot()
	now := time.Now()
	resp := types.StatusResponse{
		State:               string(s.State),
		Status:              s.Status,
		TriggerEnabled:      s.TriggerEnabled,
		Mode:                string(s.Mode),
		InitError:           s.InitError,
		LastRunID:           s.LastRunID,
		LastDurationSeconds: s.LastDuration.Seconds(),
		RunsTotal:           s.RunsTotal,
		FailuresTotal:       s.FailuresTotal,
		DroppedTotal:        s.DroppedTotal,
		UptimeSeconds:       int64(now.Sub(d.started).Seconds()),
		ServerTimeUnix:      now.Unix(),
	}
	if s.LastParams != nil {
		p := params.ToAPI(*s.LastParams)
		resp.LastParams = &p
	}
	return resp
}

// Params returns the current input values.
func (d *Daemon) Params() types.Params {
	return params.ToAPI(d.params.Get())
}

// UpdateParams merges u into the current values. A run already in flight
// keeps the values it captured.
func (d *Daemon) UpdateParams(u types.ParamsUpdate) (types.Params, error) {
	p, err := d.params.Apply(u)
	if err != nil {
		return types.Params{}, err
	}
	d.log.Debug().Str("prompt", p.Prompt).Float64("strength", p.Strength).Int("steps", p.Steps).
		Int64("seed", p.Seed).Float64("guidance_scale", p.GuidanceScale).Msg("params updated")
	return params.ToAPI(p), nil
}

// Generate fires one trigger. Accepted is false when the trigger was dropped.
func (d *Daemon) Generate() types.GenerateResponse {
	id, ok := d.orch.Trigger()
	return types.GenerateResponse{Accepted: ok, RunID: id, State: string(d.orch.State())}
}

// OutputPNG encodes the last generated image. The buffer is read under the
// orchestrator's output lock and the encoded bytes are returned afterwards.
func (d *Daemon) OutputPNG() ([]byte, error) {
	var b []byte
	err := d.orch.ReadOutput(func(img *image.RGBA) error {
		var err error
		b, err = engine.EncodePNG(img)
		return err
	})
	return b, err
}

// Resources lists model files in the configured resource directory.
func (d *Daemon) Resources() (types.ResourcesResponse, error) {
	dir := d.orch.EngineConfig().ResourceDir
	res, err := registry.LoadDir(dir)
	if err != nil {
		return types.ResourcesResponse{ResourceDir: dir}, err
	}
	if res == nil {
		res = []types.Resource{}
	}
	return types.ResourcesResponse{ResourceDir: dir, Resources: res}, nil
}

// Runs returns recent runs, newest first. Without a history database the list
// is empty.
func (d *Daemon) Runs(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	if d.history == nil {
		return []types.RunRecord{}, nil
	}
	return d.history.Recent(ctx, limit)
}

// Ready reports whether the engine is loaded (idle or running).
func (d *Daemon) Ready() bool {
	switch d.orch.State() {
	case orchestrator.StateReady, orchestrator.StateRunning:
		return true
	}
	return false
}

// Subscribe streams API events until the returned cancel func is called.
// Slow consumers lose events.
func (d *Daemon) Subscribe(buf int) (<-chan types.Event, func()) {
	src, cancelSrc := d.bus.Subscribe(buf)
	out := make(chan types.Event, cap(src))
	stop := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case e, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- toAPIEvent(e):
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(stop)
			cancelSrc()
		})
	}
}

func toAPIEvent(e orchestrator.Event) types.Event {
	return types.Event{Name: e.Name, RunID: e.RunID, TimeMs: e.At.UnixMilli(), Fields: e.Fields}
}

// logPublisher writes every event to the logger at debug level and forwards it.
type logPublisher struct {
	log  zerolog.Logger
	next orchestrator.EventPublisher
}

func (p *logPublisher) Publish(e orchestrator.Event) {
	p.log.Debug().Str("event", e.Name).Str("run_id", e.RunID).Fields(e.Fields).Msg("orchestrator event")
	if p.next != nil {
		p.next.Publish(e)
	}
}
