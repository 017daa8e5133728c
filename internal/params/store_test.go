package params

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"img2imgd/internal/engine"
	"img2imgd/pkg/types"
)

func ptr[T any](v T) *T { return &v }

func TestApplyPartialUpdate(t *testing.T) {
	s := NewStore(engine.DefaultParams())
	got, err := s.Apply(types.ParamsUpdate{Prompt: ptr("a cat"), Seed: ptr(int64(42))})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := engine.DefaultParams()
	want.Prompt = "a cat"
	want.Seed = 42
	if got != want || s.Get() != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestApplyRejectsInvalidAsWhole(t *testing.T) {
	s := NewStore(engine.DefaultParams())
	before := s.Get()
	_, err := s.Apply(types.ParamsUpdate{Prompt: ptr("dog"), Steps: ptr(0)})
	if !errors.Is(err, engine.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if s.Get() != before {
		t.Fatalf("partial update leaked: %+v", s.Get())
	}
	if err := s.Set(engine.Params{Steps: 10, Strength: 3}); err == nil {
		t.Fatalf("Set accepted invalid params")
	}
}

func TestCaptureIsSnapshot(t *testing.T) {
	s := NewStore(engine.DefaultParams())
	snap := s.Capture()
	if _, err := s.Apply(types.ParamsUpdate{Prompt: ptr("changed")}); err != nil {
		t.Fatal(err)
	}
	if snap.Prompt != "" {
		t.Fatalf("snapshot changed after edit: %+v", snap)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "params.json")
	s := NewStore(engine.DefaultParams())
	if err := s.Persist(path); err != nil {
		t.Fatalf("Persist on missing file: %v", err)
	}
	if _, err := s.Apply(types.ParamsUpdate{Prompt: ptr("saved"), Strength: ptr(0.8)}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("params not written: %v", err)
	}

	s2 := NewStore(engine.DefaultParams())
	if err := s2.Persist(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p := s2.Get(); p.Prompt != "saved" || p.Strength != 0.8 {
		t.Fatalf("unexpected reloaded params %+v", p)
	}
}

func TestPersistRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewStore(engine.DefaultParams()).Persist(path); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := os.WriteFile(path, []byte(`{"steps": 0, "strength": 0.5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := NewStore(engine.DefaultParams()).Persist(path); !errors.Is(err, engine.ErrInvalidParams) {
		t.Fatalf("expected invalid stored params, got %v", err)
	}
}

func TestSaveFailureIsLogged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "params.json")
	var buf bytes.Buffer
	s := NewStore(engine.DefaultParams())
	s.SetLogger(zerolog.New(&buf))
	if err := s.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	// A file where the parent directory should be makes every save fail.
	if err := os.WriteFile(filepath.Join(dir, "state"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := s.Apply(types.ParamsUpdate{Prompt: ptr("kept")})
	if err != nil {
		t.Fatalf("Apply must succeed when the save fails: %v", err)
	}
	if p.Prompt != "kept" || s.Get().Prompt != "kept" {
		t.Fatalf("update lost: %+v", s.Get())
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, "save params") || !strings.Contains(out, path) {
		t.Fatalf("save failure not logged: %q", out)
	}
}

func TestConcurrentEditsAndCaptures(t *testing.T) {
	s := NewStore(engine.DefaultParams())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Apply(types.ParamsUpdate{Seed: ptr(int64(i))})
		}(i)
		go func() {
			defer wg.Done()
			if err := s.Capture().Validate(); err != nil {
				t.Errorf("captured invalid params: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestToAPI(t *testing.T) {
	p := engine.Params{Prompt: "x", Strength: 0.1, Steps: 3, Seed: 4, GuidanceScale: 5}
	a := ToAPI(p)
	if a.Prompt != "x" || a.Strength != 0.1 || a.Steps != 3 || a.Seed != 4 || a.GuidanceScale != 5 {
		t.Fatalf("unexpected %+v", a)
	}
}
