// Package enginetest provides an in-memory engine.Executor for tests.
package enginetest

import (
	"context"
	"image"
	"image/color"
	"sync"

	"img2imgd/internal/engine"
)

// Executor is a scriptable fake. Loads and runs can be made to fail or to
// block until released. Each run returns a solid image whose red channel is
// the low byte of the seed.
type Executor struct {
	mu       sync.Mutex
	loadErr  error
	runErr   error
	loadGate chan struct{}
	runGate  chan struct{}
	size     int
	loads    int
	closes   int
	runs     []engine.Params
	targets  []engine.ComputeTarget

	// RunStarted receives the params of every run as it begins, when non-nil
	// and not full.
	RunStarted chan engine.Params
}

// New returns a fake whose runs produce OutputSize images.
func New() *Executor {
	return &Executor{size: engine.OutputSize, RunStarted: make(chan engine.Params, 64)}
}

// FailLoad makes subsequent loads return err (nil clears it).
func (e *Executor) FailLoad(err error) {
	e.mu.Lock()
	e.loadErr = err
	e.mu.Unlock()
}

// FailRun makes subsequent runs return err (nil clears it).
func (e *Executor) FailRun(err error) {
	e.mu.Lock()
	e.runErr = err
	e.mu.Unlock()
}

// SetSize changes the edge length of generated images.
func (e *Executor) SetSize(n int) {
	e.mu.Lock()
	e.size = n
	e.mu.Unlock()
}

// BlockLoad makes loads wait until the returned func is called.
func (e *Executor) BlockLoad() (release func()) {
	g := make(chan struct{})
	e.mu.Lock()
	e.loadGate = g
	e.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(g) }) }
}

// BlockRuns makes runs wait until the returned func is called.
func (e *Executor) BlockRuns() (release func()) {
	g := make(chan struct{})
	e.mu.Lock()
	e.runGate = g
	e.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(g) }) }
}

func (e *Executor) Loads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

func (e *Executor) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// Runs returns the params of every run started so far, in order.
func (e *Executor) Runs() []engine.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Params(nil), e.runs...)
}

// Targets returns the compute target of every load.
func (e *Executor) Targets() []engine.ComputeTarget {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.ComputeTarget(nil), e.targets...)
}

func (e *Executor) Load(ctx context.Context, resourcePath string, target engine.ComputeTarget) (engine.Session, error) {
	e.mu.Lock()
	e.loads++
	e.targets = append(e.targets, target)
	gate, err := e.loadGate, e.loadErr
	e.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &session{e: e}, nil
}

type session struct {
	e      *Executor
	closed bool
}

func (s *session) Run(ctx context.Context, source image.Image, p engine.Params) (image.Image, error) {
	e := s.e
	e.mu.Lock()
	if s.closed {
		e.mu.Unlock()
		return nil, engine.ErrSessionClosed
	}
	e.runs = append(e.runs, p)
	gate, err, size := e.runGate, e.runErr, e.size
	e.mu.Unlock()
	if e.RunStarted != nil {
		select {
		case e.RunStarted <- p:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := color.RGBA{R: uint8(p.Seed), G: 0x10, B: 0x20, A: 0xff}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (s *session) Close() error {
	s.e.mu.Lock()
	defer s.e.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.e.closes++
	}
	return nil
}
