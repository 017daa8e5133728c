package httpapi

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"img2imgd/internal/engine"
	"img2imgd/internal/orchestrator"
	"img2imgd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps well-known service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, engine.ErrInvalidParams):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNoOutput),
		errors.Is(err, engine.ErrModelNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNotReady),
		errors.Is(err, orchestrator.ErrDisposed),
		engine.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
