// Package pipeline owns the loaded engine session and the fixed-size output
// buffer it writes into. A Handle is not safe for concurrent use; the
// orchestrator serializes every call.
package pipeline

import (
	"context"
	"fmt"
	"image"

	"img2imgd/internal/engine"
)

// OutputSize is the edge length of the square output buffer.
const OutputSize = engine.OutputSize

// EngineConfig selects the resources and acceleration path for Initialize.
type EngineConfig struct {
	ResourceDir   string
	ComputeTarget engine.ComputeTarget
}

type handleState int

const (
	stateEmpty handleState = iota
	stateFailed
	stateReady
	stateDisposed
)

// Handle wraps one engine session.
type Handle struct {
	exec    engine.Executor
	state   handleState
	session engine.Session
	output  *image.RGBA
	cfg     EngineConfig
}

// New returns an uninitialized handle backed by exec.
func New(exec engine.Executor) *Handle {
	return &Handle{exec: exec}
}

// Initialize loads the engine. It may be retried after a failure. On success
// the output buffer is allocated.
func (h *Handle) Initialize(ctx context.Context, cfg EngineConfig) error {
	switch h.state {
	case stateReady:
		return &InitializationError{Err: ErrAlreadyReady}
	case stateDisposed:
		return &InitializationError{Err: ErrDisposed}
	}
	if h.exec == nil {
		h.state = stateFailed
		return &InitializationError{Err: engine.ErrDependencyUnavailable("no engine executor configured")}
	}
	target := cfg.ComputeTarget
	if target == "" {
		target = engine.ComputeAll
	}
	sess, err := h.exec.Load(ctx, cfg.ResourceDir, target)
	if err != nil {
		h.state = stateFailed
		return &InitializationError{Err: err}
	}
	if sess == nil {
		h.state = stateFailed
		return &InitializationError{Err: engine.ErrEmptyResult}
	}
	h.session = sess
	h.cfg = EngineConfig{ResourceDir: cfg.ResourceDir, ComputeTarget: target}
	h.output = image.NewRGBA(image.Rect(0, 0, OutputSize, OutputSize))
	h.state = stateReady
	return nil
}

// Generate runs one pass over source with p and writes the result into out in
// place. out is normally the buffer returned by Output.
func (h *Handle) Generate(ctx context.Context, source image.Image, p engine.Params, out *image.RGBA) error {
	switch h.state {
	case stateDisposed:
		return &GenerationError{Err: ErrDisposed}
	case stateReady:
	default:
		return &GenerationError{Err: ErrNotInitialized}
	}
	if source == nil {
		return &GenerationError{Err: engine.ErrImageEmpty}
	}
	if out == nil {
		return &GenerationError{Err: fmt.Errorf("nil output buffer")}
	}
	if err := p.Validate(); err != nil {
		return &GenerationError{Err: err}
	}
	src := source
	if b := source.Bounds(); b.Dx() != OutputSize || b.Dy() != OutputSize {
		src = engine.Resize(source, OutputSize, OutputSize)
	}
	res, err := h.session.Run(ctx, src, p)
	if err != nil {
		return &GenerationError{Err: err}
	}
	if res == nil || res.Bounds().Empty() {
		return &GenerationError{Err: engine.ErrEmptyResult}
	}
	engine.ScaleInto(out, res)
	return nil
}

// Output returns the output buffer, or nil before Initialize succeeds and
// after Dispose.
func (h *Handle) Output() *image.RGBA { return h.output }

// Config returns the configuration the engine was loaded with.
func (h *Handle) Config() EngineConfig { return h.cfg }

// Ready reports whether Generate can be called.
func (h *Handle) Ready() bool { return h.state == stateReady }

// Dispose releases the engine session and the output buffer. Only the first
// call does any work.
func (h *Handle) Dispose() error {
	if h.state == stateDisposed {
		return nil
	}
	h.state = stateDisposed
	h.output = nil
	if h.session == nil {
		return nil
	}
	s := h.session
	h.session = nil
	if err := s.Close(); err != nil {
		return fmt.Errorf("release engine: %w", err)
	}
	return nil
}
