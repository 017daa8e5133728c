package engine

import (
	"fmt"
	"math"
	"strings"
)

// Params holds the knobs applied to one image-to-image pass. It is a value
// type: a copy is a snapshot that later edits to the source cannot reach.
type Params struct {
	Prompt        string  `json:"prompt" yaml:"prompt" toml:"prompt"`
	Strength      float64 `json:"strength" yaml:"strength" toml:"strength"`
	Steps         int     `json:"steps" yaml:"steps" toml:"steps"`
	Seed          int64   `json:"seed" yaml:"seed" toml:"seed"`
	GuidanceScale float64 `json:"guidance_scale" yaml:"guidance_scale" toml:"guidance_scale"`
}

// Parameter limits.
const (
	MinSteps = 1
	MaxSteps = 150

	MinGuidance = 0.0
	MaxGuidance = 30.0

	MaxPromptLength = 1000
)

// DefaultParams returns the parameters a fresh install starts with.
func DefaultParams() Params {
	return Params{
		Prompt:        "",
		Strength:      0.5,
		Steps:         20,
		Seed:          0,
		GuidanceScale: 7.5,
	}
}

// Validate checks p against the engine limits. An empty prompt is allowed;
// img2img still has the source image to work from.
func (p Params) Validate() error {
	if strings.ContainsRune(p.Prompt, '\x00') {
		return fmt.Errorf("%w: prompt contains null bytes", ErrInvalidParams)
	}
	if len(p.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt length %d exceeds maximum %d", ErrInvalidParams, len(p.Prompt), MaxPromptLength)
	}
	if math.IsNaN(p.Strength) || p.Strength < 0 || p.Strength > 1 {
		return fmt.Errorf("%w: strength %.2f must be between 0 and 1", ErrInvalidParams, p.Strength)
	}
	if p.Steps < MinSteps || p.Steps > MaxSteps {
		return fmt.Errorf("%w: steps %d must be between %d and %d", ErrInvalidParams, p.Steps, MinSteps, MaxSteps)
	}
	if math.IsNaN(p.GuidanceScale) || p.GuidanceScale < MinGuidance || p.GuidanceScale > MaxGuidance {
		return fmt.Errorf("%w: guidance scale %.2f must be between %.1f and %.1f", ErrInvalidParams, p.GuidanceScale, MinGuidance, MaxGuidance)
	}
	return nil
}
