package orchestrator

import (
	"errors"

	"img2imgd/internal/pipeline"
)

var (
	ErrDisposed       = errors.New("orchestrator disposed")
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrBusy           = errors.New("generation in progress")
	ErrNoOutput       = errors.New("no output generated yet")
	ErrNotReady       = errors.New("orchestrator not ready")
)

// IsInitializationError reports whether err is an engine load failure.
func IsInitializationError(err error) bool { return pipeline.IsInitializationError(err) }

// IsGenerationError reports whether err is a failed run.
func IsGenerationError(err error) bool { return pipeline.IsGenerationError(err) }

// cause strips the pipeline wrapper so status text carries the engine's own
// message once.
func cause(err error) string {
	var ie *pipeline.InitializationError
	if errors.As(err, &ie) && ie.Err != nil {
		return ie.Err.Error()
	}
	var ge *pipeline.GenerationError
	if errors.As(err, &ge) && ge.Err != nil {
		return ge.Err.Error()
	}
	return err.Error()
}
