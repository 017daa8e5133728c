package engine

import "errors"

var (
	ErrModelNotFound     = errors.New("engine: model file not found")
	ErrInvalidParams     = errors.New("engine: invalid generation parameters")
	ErrUnsupportedTarget = errors.New("engine: unsupported compute target")
	ErrSessionClosed     = errors.New("engine: session is closed")
	ErrEmptyResult       = errors.New("engine: engine returned no image")
)

// dependencyUnavailableError signals a missing external runtime (sd binary,
// unreachable server) so callers can tell it apart from bad input.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}
