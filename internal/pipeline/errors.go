package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized = errors.New("pipeline not initialized")
	ErrDisposed       = errors.New("pipeline disposed")
	ErrAlreadyReady   = errors.New("pipeline already initialized")
)

// InitializationError wraps any failure to bring the engine up.
type InitializationError struct{ Err error }

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// IsInitializationError reports whether err came from Initialize.
func IsInitializationError(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}

// GenerationError wraps any failure of a single generation pass.
type GenerationError struct{ Err error }

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err came from Generate.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
