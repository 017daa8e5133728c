package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"img2imgd/internal/registry"
)

// OutputSize is the fixed edge length of generated images.
const OutputSize = 512

// SDCppConfig configures the stable-diffusion.cpp subprocess executor.
type SDCppConfig struct {
	// Bin is the path to the sd CLI. Empty means look it up on $PATH.
	Bin string
	// Threads passed as -t when > 0.
	Threads int
	// ExtraArgs are appended verbatim to every invocation.
	ExtraArgs []string
	Logger    zerolog.Logger
}

type sdcppExecutor struct {
	cfg SDCppConfig
}

// NewSDCppExecutor returns an Executor that runs one sd process per generation.
func NewSDCppExecutor(cfg SDCppConfig) Executor {
	return &sdcppExecutor{cfg: cfg}
}

// discoverSDBin looks for the stable-diffusion.cpp CLI in common build
// locations and then on $PATH.
func discoverSDBin() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		filepath.Join(home, "apps", "stable-diffusion.cpp", "build", "bin", "sd"),
		"/usr/local/bin/sd",
		"/opt/homebrew/bin/sd",
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	for _, name := range []string{"sd", "sd-cli"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func (e *sdcppExecutor) Load(ctx context.Context, resourcePath string, target ComputeTarget) (Session, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTarget, target)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bin := strings.TrimSpace(e.cfg.Bin)
	if bin == "" {
		bin = discoverSDBin()
	}
	if bin == "" {
		return nil, ErrDependencyUnavailable("stable-diffusion.cpp binary not found: set --sd-bin or install sd on PATH")
	}
	if fi, err := os.Stat(bin); err != nil || fi.IsDir() {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("stable-diffusion.cpp binary not found or not a file: %s", bin))
	}
	model, err := registry.FirstModel(resourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotFound, err)
	}
	work, err := os.MkdirTemp("", "img2imgd-sd-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	e.cfg.Logger.Info().Str("event", "sdcpp_load").Str("bin", bin).Str("model", model.Path).
		Str("target", target.String()).Msg("engine session ready")
	return &sdcppSession{
		bin:       bin,
		modelPath: model.Path,
		target:    target,
		workDir:   work,
		threads:   e.cfg.Threads,
		extra:     append([]string(nil), e.cfg.ExtraArgs...),
		log:       e.cfg.Logger,
	}, nil
}

type sdcppSession struct {
	mu        sync.Mutex
	bin       string
	modelPath string
	target    ComputeTarget
	workDir   string
	threads   int
	extra     []string
	log       zerolog.Logger
	closed    bool
}

// sdcppArgs builds the img2img command line for one run.
func sdcppArgs(modelPath, in, out string, p Params, target ComputeTarget, threads int, extra []string) []string {
	args := []string{
		"-M", "img2img",
		"-m", modelPath,
		"-i", in,
		"-o", out,
		"-p", p.Prompt,
		"--strength", strconv.FormatFloat(p.Strength, 'f', -1, 64),
		"--steps", strconv.Itoa(p.Steps),
		"--seed", strconv.FormatInt(p.Seed, 10),
		"--cfg-scale", strconv.FormatFloat(p.GuidanceScale, 'f', -1, 64),
		"-W", strconv.Itoa(OutputSize),
		"-H", strconv.Itoa(OutputSize),
	}
	switch target {
	case ComputeCPUOnly:
		args = append(args, "--clip-on-cpu", "--vae-on-cpu")
	case ComputeGPUPreferred:
		args = append(args, "--clip-on-cpu")
	}
	if threads > 0 {
		args = append(args, "-t", strconv.Itoa(threads))
	}
	return append(args, extra...)
}

// sdcppEnv hides accelerators from the process for CPU-only runs.
func sdcppEnv(target ComputeTarget) []string {
	env := os.Environ()
	if target == ComputeCPUOnly {
		env = append(env, "CUDA_VISIBLE_DEVICES=", "HIP_VISIBLE_DEVICES=")
	}
	return env
}

func (s *sdcppSession) Run(ctx context.Context, source image.Image, p Params) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	in := filepath.Join(s.workDir, "source.png")
	out := filepath.Join(s.workDir, "output.png")
	if err := WritePNGFile(in, source); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}
	_ = os.Remove(out)

	args := sdcppArgs(s.modelPath, in, out, p, s.target, s.threads, s.extra)
	cmd := exec.CommandContext(ctx, s.bin, args...)
	cmd.Env = sdcppEnv(s.target)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		tail := stderr.String()
		if len(tail) > 4096 {
			tail = tail[len(tail)-4096:]
		}
		return nil, fmt.Errorf("sd exited: %v; stderr tail: %s", err, tail)
	}
	s.log.Debug().Str("event", "sdcpp_run").Dur("dur", time.Since(start)).Int("steps", p.Steps).Msg("sd finished")
	img, err := LoadImageFile(out)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrEmptyResult
		}
		return nil, fmt.Errorf("read output: %w", err)
	}
	return img, nil
}

func (s *sdcppSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return os.RemoveAll(s.workDir)
}
