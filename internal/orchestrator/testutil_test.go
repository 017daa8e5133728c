package orchestrator

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"img2imgd/internal/engine"
	"img2imgd/internal/engine/enginetest"
	"img2imgd/internal/pipeline"
)

// sliders is a mutable ParamSource that counts captures.
type sliders struct {
	mu       sync.Mutex
	p        engine.Params
	captures int
}

func newSliders(p engine.Params) *sliders { return &sliders{p: p} }

func (s *sliders) Set(p engine.Params) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *sliders) Capture() engine.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captures++
	return s.p
}

func (s *sliders) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

type memRecorder struct {
	mu   sync.Mutex
	recs []RunRecord
}

func (r *memRecorder) RecordRun(_ context.Context, rec RunRecord) error {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
	return nil
}

func (r *memRecorder) Records() []RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunRecord(nil), r.recs...)
}

func testSource() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

type fixture struct {
	o   *Orchestrator
	fx  *enginetest.Executor
	pub *MemoryPublisher
	in  *sliders
}

// newFixture builds an orchestrator over a fake executor. mut may adjust the
// config and the fake before New runs.
func newFixture(t *testing.T, mut func(*Config, *enginetest.Executor)) *fixture {
	t.Helper()
	fx := enginetest.New()
	pub := NewMemoryPublisher()
	in := newSliders(engine.DefaultParams())
	cfg := Config{
		Executor:     fx,
		Engine:       pipeline.EngineConfig{ResourceDir: "/models/sd", ComputeTarget: engine.ComputeAll},
		Source:       testSource(),
		Params:       in,
		Publisher:    pub,
		PollInterval: 5 * time.Millisecond,
	}
	if mut != nil {
		mut(&cfg, fx)
	}
	o := New(cfg)
	t.Cleanup(func() { _ = o.Close() })
	return &fixture{o: o, fx: fx, pub: pub, in: in}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, o *Orchestrator, s State) {
	t.Helper()
	waitFor(t, "state "+string(s), func() bool { return o.State() == s })
}

func waitRunStarted(t *testing.T, fx *enginetest.Executor) engine.Params {
	t.Helper()
	select {
	case p := <-fx.RunStarted:
		return p
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not start")
	}
	return engine.Params{}
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
