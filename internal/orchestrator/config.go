package orchestrator

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"img2imgd/internal/engine"
	"img2imgd/internal/pipeline"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultPollInterval = 50 * time.Millisecond
)

// Mode selects how generation is driven.
type Mode string

const (
	// ModeInteractive runs only on explicit Trigger calls; Poll is a no-op.
	ModeInteractive Mode = "interactive"
	// ModeUnattended re-triggers from Poll whenever the orchestrator is idle.
	ModeUnattended Mode = "unattended"
)

// ParseMode maps a configuration string to a Mode. Empty selects interactive.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "interactive", "button":
		return ModeInteractive, nil
	case "unattended", "continuous", "demo":
		return ModeUnattended, nil
	}
	return "", fmt.Errorf("unknown mode %q (want interactive or unattended)", s)
}

// ParamSource yields the current generation parameters. Capture is called
// exactly once per accepted run, at the moment the run starts.
type ParamSource interface {
	Capture() engine.Params
}

// StaticParams is a ParamSource that always returns the same values.
type StaticParams engine.Params

func (s StaticParams) Capture() engine.Params { return engine.Params(s) }

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	Executor engine.Executor
	Engine   pipeline.EngineConfig
	// Source is read by every run and never modified.
	Source image.Image
	Params ParamSource

	Mode Mode
	// IdleGap is the minimum time between the end of one unattended run and
	// the start of the next. Zero re-triggers immediately.
	IdleGap time.Duration
	// MaxRuns stops unattended polling after that many runs have started.
	// Zero means no limit. Manual triggers are not counted.
	MaxRuns int
	// PollInterval is the tick of Run. Defaults to 50ms.
	PollInterval time.Duration
	// RunTimeout bounds one engine call. Zero means no limit.
	RunTimeout time.Duration
	// InitTimeout bounds engine loading. Zero means no limit.
	InitTimeout time.Duration

	// DeferStart leaves the orchestrator Uninitialized until Start is called.
	DeferStart bool

	Publisher EventPublisher
	Recorder  RunRecorder
	// OutputSink, when set, is called with the output buffer after every
	// successful run, before the orchestrator returns to Ready. It runs under
	// the output lock and must not retain img.
	OutputSink func(runID string, img *image.RGBA)
	Logger     *zerolog.Logger
}
