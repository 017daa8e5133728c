package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"img2imgd/internal/engine"
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// Mode is interactive or unattended.
	Mode string `json:"mode" yaml:"mode" toml:"mode"`

	// AssetsDir is the base a relative ResourceDir is resolved against.
	AssetsDir     string `json:"assets_dir" yaml:"assets_dir" toml:"assets_dir"`
	ResourceDir   string `json:"resource_dir" yaml:"resource_dir" toml:"resource_dir"`
	ComputeTarget string `json:"compute_target" yaml:"compute_target" toml:"compute_target"`
	SourceImage   string `json:"source_image" yaml:"source_image" toml:"source_image"`

	Executor     string   `json:"executor" yaml:"executor" toml:"executor"`
	SDBin        string   `json:"sd_bin" yaml:"sd_bin" toml:"sd_bin"`
	SDThreads    int      `json:"sd_threads" yaml:"sd_threads" toml:"sd_threads"`
	SDExtraArgs  []string `json:"sd_extra_args" yaml:"sd_extra_args" toml:"sd_extra_args"`
	ServerURL    string   `json:"server_url" yaml:"server_url" toml:"server_url"`
	ServerAPIKey string   `json:"server_api_key" yaml:"server_api_key" toml:"server_api_key"`

	IdleGapMs         int `json:"idle_gap_ms" yaml:"idle_gap_ms" toml:"idle_gap_ms"`
	PollIntervalMs    int `json:"poll_interval_ms" yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	RunTimeoutSec     int `json:"run_timeout_sec" yaml:"run_timeout_sec" toml:"run_timeout_sec"`
	InitTimeoutSec    int `json:"init_timeout_sec" yaml:"init_timeout_sec" toml:"init_timeout_sec"`
	RequestTimeoutSec int `json:"request_timeout_sec" yaml:"request_timeout_sec" toml:"request_timeout_sec"`

	// Params seeds the parameter store when no saved parameters exist.
	Params     engine.Params `json:"params" yaml:"params" toml:"params"`
	ParamsFile string        `json:"params_file" yaml:"params_file" toml:"params_file"`
	HistoryDB  string        `json:"history_db" yaml:"history_db" toml:"history_db"`
	// HistoryRetentionDays drops older runs at start-up; 0 keeps everything.
	HistoryRetentionDays int `json:"history_retention_days" yaml:"history_retention_days" toml:"history_retention_days"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile   string `json:"log_file" yaml:"log_file" toml:"log_file"`

	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods  []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders  []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Load reads a configuration file based on its extension on top of Default,
// so keys absent from the file keep their default values.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
