// Package params holds the live, user-editable generation parameters. Edits
// may arrive at any time; the orchestrator reads them only through Capture.
package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"img2imgd/internal/engine"
	"img2imgd/pkg/types"
)

// Store is a mutex-guarded engine.Params with optional JSON persistence.
type Store struct {
	mu   sync.RWMutex
	p    engine.Params
	path string
	log  zerolog.Logger
}

// NewStore returns a store seeded with initial. initial is not validated so a
// config can start from whatever the user last saved.
func NewStore(initial engine.Params) *Store {
	return &Store{p: initial, log: zerolog.Nop()}
}

// SetLogger sets the logger that reports failed saves. Call before the store
// is shared.
func (s *Store) SetLogger(l zerolog.Logger) {
	s.log = l.With().Str("component", "params").Logger()
}

// Get returns a copy of the current parameters.
func (s *Store) Get() engine.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

// Capture returns the parameters for a run that is starting now.
func (s *Store) Capture() engine.Params { return s.Get() }

// Set replaces all parameters after validating them.
func (s *Store) Set(p engine.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
	s.save()
	return nil
}

// Apply merges the non-nil fields of u into the current parameters. The
// update is rejected as a whole when the merged result is invalid.
func (s *Store) Apply(u types.ParamsUpdate) (engine.Params, error) {
	s.mu.Lock()
	next := s.p
	if u.Prompt != nil {
		next.Prompt = *u.Prompt
	}
	if u.Strength != nil {
		next.Strength = *u.Strength
	}
	if u.Steps != nil {
		next.Steps = *u.Steps
	}
	if u.Seed != nil {
		next.Seed = *u.Seed
	}
	if u.GuidanceScale != nil {
		next.GuidanceScale = *u.GuidanceScale
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return s.Get(), err
	}
	s.p = next
	s.mu.Unlock()
	s.save()
	return next, nil
}

// Persist enables saving to path after every successful change and loads
// any values already stored there. A missing file is not an error; an
// unreadable or invalid one is.
func (s *Store) Persist(path string) error {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read params: %w", err)
	}
	var p engine.Params
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("decode params %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("stored params %s: %w", path, err)
	}
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
	return nil
}

// save writes the current values to the persist path. A failed save leaves
// the in-memory update in place; it is logged and retried by the next change.
func (s *Store) save() {
	s.mu.RLock()
	path, snap := s.path, s.p
	s.mu.RUnlock()
	if path == "" {
		return
	}
	if err := writeParams(path, snap); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("save params")
	}
}

func writeParams(path string, p engine.Params) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ToAPI converts engine params to the wire type.
func ToAPI(p engine.Params) types.Params {
	return types.Params{
		Prompt:        p.Prompt,
		Strength:      p.Strength,
		Steps:         p.Steps,
		Seed:          p.Seed,
		GuidanceScale: p.GuidanceScale,
	}
}
