// Package engine is the boundary to the opaque diffusion runtime.
//
// The orchestration layer never touches model weights or diffusion math. It
// loads a Session once through an Executor, runs it any number of times, and
// closes it on teardown:
//
//   - Executor.Load: load(resourcePath, computeTarget) -> handle | error
//   - Session.Run:   run(handle, source, params) -> image | error
//   - Session.Close: release(handle)
//
// Two executors are provided: "sdcpp" drives the stable-diffusion.cpp CLI as a
// subprocess, and "server" talks to an AUTOMATIC1111-compatible HTTP API.
package engine

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Executor loads an engine session from a resource directory.
type Executor interface {
	// Load prepares the engine for the given resources and compute target.
	// The returned Session stays valid until Close.
	Load(ctx context.Context, resourcePath string, target ComputeTarget) (Session, error)
}

// Session is a loaded engine instance. Run must not be called concurrently
// with itself or with Close; callers serialize access.
type Session interface {
	// Run performs one full image-to-image pass over source and returns the
	// generated image.
	Run(ctx context.Context, source image.Image, p Params) (image.Image, error)
	// Close releases the engine and any accelerator resources it holds.
	Close() error
}

// ComputeTarget selects which acceleration path the engine should prefer.
type ComputeTarget string

const (
	ComputeCPUOnly      ComputeTarget = "cpu_only"
	ComputeGPUPreferred ComputeTarget = "gpu_preferred"
	ComputeAll          ComputeTarget = "all"
)

// ParseComputeTarget maps a user supplied selector to a ComputeTarget.
// Empty input selects ComputeAll.
func ParseComputeTarget(s string) (ComputeTarget, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ComputeAll, nil
	case "cpu_only", "cpu-only", "cpu":
		return ComputeCPUOnly, nil
	case "gpu_preferred", "gpu-preferred", "gpu", "cpu_and_gpu":
		return ComputeGPUPreferred, nil
	default:
		return "", fmt.Errorf("%w: unknown compute target %q", ErrUnsupportedTarget, s)
	}
}

// Valid reports whether t is one of the known targets.
func (t ComputeTarget) Valid() bool {
	switch t {
	case ComputeCPUOnly, ComputeGPUPreferred, ComputeAll:
		return true
	}
	return false
}

func (t ComputeTarget) String() string { return string(t) }
