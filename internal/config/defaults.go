package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"img2imgd/internal/common/fsutil"
	"img2imgd/internal/engine"
	"img2imgd/internal/orchestrator"
)

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Addr:              ":8080",
		Mode:              string(orchestrator.ModeInteractive),
		AssetsDir:         ".",
		ResourceDir:       "~/models/sd",
		ComputeTarget:     string(engine.ComputeAll),
		SourceImage:       "source.png",
		Executor:          "sdcpp",
		IdleGapMs:         0,
		PollIntervalMs:    50,
		RequestTimeoutSec: 600,
		Params:            engine.DefaultParams(),
		ParamsFile:        "~/.img2imgd/params.json",
		HistoryDB:         "~/.img2imgd/history.db",
		LogLevel:          "info",
		LogFormat:         "console",
		MaxBodyBytes:      1 << 20,
		CORSMethods:       []string{"GET", "POST", "PUT", "OPTIONS"},
		CORSHeaders:       []string{"Content-Type", "Authorization", "X-Log-Level"},
	}
}

// Validate checks values that cannot be caught by decoding alone.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if _, err := orchestrator.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := engine.ParseComputeTarget(c.ComputeTarget); err != nil {
		errs = append(errs, err)
	}
	if _, err := engine.ParseKind(c.Executor); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.ResourceDir) == "" {
		errs = append(errs, errors.New("resource_dir must not be empty"))
	}
	if c.SDThreads < 0 {
		errs = append(errs, fmt.Errorf("sd_threads must be >= 0, got %d", c.SDThreads))
	}
	for name, v := range map[string]int{
		"idle_gap_ms":            c.IdleGapMs,
		"poll_interval_ms":       c.PollIntervalMs,
		"run_timeout_sec":        c.RunTimeoutSec,
		"init_timeout_sec":       c.InitTimeoutSec,
		"request_timeout_sec":    c.RequestTimeoutSec,
		"history_retention_days": c.HistoryRetentionDays,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be >= 0, got %d", name, v))
		}
	}
	if err := c.Params.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("params: %w", err))
	}
	return errors.Join(errs...)
}

// ResolvedResourceDir returns ResourceDir as an absolute path, joined under
// AssetsDir when relative.
func (c Config) ResolvedResourceDir() (string, error) {
	return fsutil.ResolveDir(c.AssetsDir, c.ResourceDir)
}

// ResolvePath expands '~' in p and makes it absolute. Empty stays empty.
func ResolvePath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	x, err := fsutil.ExpandHome(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(x)
}

// Duration views of the integer config fields.
func (c Config) IdleGap() time.Duration {
	return time.Duration(c.IdleGapMs) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSec) * time.Second
}

func (c Config) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutSec) * time.Second
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}
