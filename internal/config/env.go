package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"img2imgd/internal/common/fsutil"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "IMG2IMGD_"

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if !fsutil.PathExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields of cfg from IMG2IMGD_* variables looked up via
// getenv (os.Getenv when nil).
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(k string) (string, bool) {
		v := strings.TrimSpace(getenv(EnvPrefix + k))
		return v, v != ""
	}
	str := func(k string, dst *string) {
		if v, ok := get(k); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(k string, dst *int) {
		if v, ok := get(k); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, k, err))
				return
			}
			*dst = n
		}
	}
	list := func(k string, dst *[]string) {
		if v, ok := get(k); ok {
			*dst = SplitCSV(v)
		}
	}

	str("ADDR", &cfg.Addr)
	str("MODE", &cfg.Mode)
	str("ASSETS_DIR", &cfg.AssetsDir)
	str("RESOURCE_DIR", &cfg.ResourceDir)
	str("COMPUTE_TARGET", &cfg.ComputeTarget)
	str("SOURCE_IMAGE", &cfg.SourceImage)
	str("EXECUTOR", &cfg.Executor)
	str("SD_BIN", &cfg.SDBin)
	num("SD_THREADS", &cfg.SDThreads)
	list("SD_EXTRA_ARGS", &cfg.SDExtraArgs)
	str("SERVER_URL", &cfg.ServerURL)
	str("SERVER_API_KEY", &cfg.ServerAPIKey)
	num("IDLE_GAP_MS", &cfg.IdleGapMs)
	num("POLL_INTERVAL_MS", &cfg.PollIntervalMs)
	num("RUN_TIMEOUT_SEC", &cfg.RunTimeoutSec)
	num("INIT_TIMEOUT_SEC", &cfg.InitTimeoutSec)
	num("REQUEST_TIMEOUT_SEC", &cfg.RequestTimeoutSec)
	str("PARAMS_FILE", &cfg.ParamsFile)
	str("HISTORY_DB", &cfg.HistoryDB)
	num("HISTORY_RETENTION_DAYS", &cfg.HistoryRetentionDays)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("LOG_FILE", &cfg.LogFile)
	str("PROMPT", &cfg.Params.Prompt)
	if v, ok := get("CORS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCORS_ENABLED: %w", EnvPrefix, err))
		} else {
			cfg.CORSEnabled = b
		}
	}
	list("CORS_ORIGINS", &cfg.CORSOrigins)
	return errors.Join(errs...)
}

// SplitCSV splits a comma-separated list, trimming spaces and dropping empties.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
