package types

// Params are the generation inputs exposed over the API.
type Params struct {
	// Text prompt steering the generation. May be empty.
	// example: a cat
	Prompt string `json:"prompt" example:"a cat"`
	// How far the result may drift from the source image, 0..1.
	// example: 0.6
	Strength float64 `json:"strength" example:"0.6"`
	// Number of denoising steps.
	// example: 20
	Steps int `json:"steps" example:"20"`
	// Random seed for reproducibility.
	// example: 42
	Seed int64 `json:"seed" example:"42"`
	// Classifier-free guidance scale.
	// example: 7.5
	GuidanceScale float64 `json:"guidance_scale" example:"7.5"`
}

// ParamsUpdate is a partial update for PUT /params. Omitted fields keep their
// current value.
type ParamsUpdate struct {
	Prompt        *string  `json:"prompt,omitempty" example:"a cat"`
	Strength      *float64 `json:"strength,omitempty" example:"0.6"`
	Steps         *int     `json:"steps,omitempty" example:"20"`
	Seed          *int64   `json:"seed,omitempty" example:"42"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty" example:"7.5"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Whether the trigger started a run. False when a run is already in
	// flight or the pipeline is not ready; the trigger is dropped, not queued.
	// example: true
	Accepted bool `json:"accepted" example:"true"`
	// ID of the started run.
	// example: 1b4e28ba-2fa1-11d2-883f-0016d3cca427
	RunID string `json:"run_id,omitempty" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427"`
	// Lifecycle state after the trigger.
	// example: running
	State string `json:"state" example:"running"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Lifecycle state: uninitialized, initializing, ready, running, disposed.
	// example: ready
	State string `json:"state" example:"ready"`
	// Human readable status line.
	// example: Generation time: 3.21 sec
	Status string `json:"status" example:"Generation time: 3.21 sec"`
	// Whether a generation trigger would currently be accepted.
	// example: true
	TriggerEnabled bool `json:"trigger_enabled" example:"true"`
	// Trigger mode: interactive or unattended.
	// example: interactive
	Mode string `json:"mode" example:"interactive"`
	// Initialization failure, if the last start-up attempt failed.
	InitError string `json:"init_error,omitempty"`
	// ID of the most recent run.
	LastRunID string `json:"last_run_id,omitempty"`
	// Wall-clock duration of the most recent successful run in seconds.
	// example: 3.21
	LastDurationSeconds float64 `json:"last_duration_seconds" example:"3.21"`
	// Parameters used by the most recent run.
	LastParams *Params `json:"last_params,omitempty"`
	// Completed runs since start.
	// example: 12
	RunsTotal uint64 `json:"runs_total" example:"12"`
	// Failed runs since start.
	// example: 1
	FailuresTotal uint64 `json:"failures_total" example:"1"`
	// Triggers ignored because the pipeline was busy or not ready.
	// example: 3
	DroppedTotal uint64 `json:"dropped_total" example:"3"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// RunRecord describes one finished run.
type RunRecord struct {
	ID              string  `json:"id"`
	StartedAtUnix   int64   `json:"started_at_unix"`
	DurationSeconds float64 `json:"duration_seconds"`
	Outcome         string  `json:"outcome"`
	Error           string  `json:"error,omitempty"`
	Params          Params  `json:"params"`
}

// RunsResponse wraps GET /runs.
type RunsResponse struct {
	Runs []RunRecord `json:"runs"`
}

// Event is one orchestrator event streamed over GET /events.
type Event struct {
	Name   string         `json:"name"`
	RunID  string         `json:"run_id,omitempty"`
	TimeMs int64          `json:"time_unix_ms"`
	Fields map[string]any `json:"fields,omitempty"`
}
