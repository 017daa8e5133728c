package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nresource_dir: /tmp/sd\nmode: unattended\nexecutor: server\nserver_url: http://127.0.0.1:7860\nidle_gap_ms: 250\nparams:\n  prompt: a watercolor fox\n  steps: 30\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ResourceDir != "/tmp/sd" || cfg.Mode != "unattended" || cfg.Executor != "server" || cfg.IdleGapMs != 250 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Params.Prompt != "a watercolor fox" || cfg.Params.Steps != 30 {
		t.Fatalf("unexpected params: %+v", cfg.Params)
	}
	// keys absent from the file keep defaults
	if cfg.Params.Strength != 0.5 || cfg.Params.GuidanceScale != 7.5 || cfg.ComputeTarget != "all" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","resource_dir":"/m","compute_target":"cpu_only","sd_threads":4,"params":{"seed":42,"strength":0.8}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.ResourceDir != "/m" || cfg.ComputeTarget != "cpu_only" || cfg.SDThreads != 4 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Params.Seed != 42 || cfg.Params.Strength != 0.8 || cfg.Params.Steps != 20 {
		t.Fatalf("unexpected params: %+v", cfg.Params)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nresource_dir=\"/x\"\nrun_timeout_sec=90\nsd_extra_args=[\"--vae-tiling\"]\n\n[params]\nprompt=\"ink sketch\"\nguidance_scale=5.0\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ResourceDir != "/x" || cfg.RunTimeoutSec != 90 || len(cfg.SDExtraArgs) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Params.Prompt != "ink sketch" || cfg.Params.GuidanceScale != 5.0 {
		t.Fatalf("unexpected params: %+v", cfg.Params)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	c := Default()
	c.Mode = "sometimes"
	c.ComputeTarget = "tpu"
	c.Executor = "onnx"
	c.IdleGapMs = -1
	c.Params.Steps = 0
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"sometimes", "tpu", "onnx", "idle_gap_ms", "params"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %q", msg, want)
		}
	}
}

func TestResolvedResourceDir(t *testing.T) {
	c := Default()
	c.AssetsDir = "/srv/app"
	c.ResourceDir = "models/sd"
	got, err := c.ResolvedResourceDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join("/srv/app", "models", "sd") {
		t.Fatalf("got %q", got)
	}
	c.ResourceDir = "/abs/sd"
	got, _ = c.ResolvedResourceDir()
	if got != "/abs/sd" {
		t.Fatalf("absolute dir should ignore assets dir, got %q", got)
	}
}
