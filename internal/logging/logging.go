// Package logging builds the process zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for file output.
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30
)

// Config controls where and how verbosely the logger writes.
type Config struct {
	// Level is one of debug, info, warn, error, off. Empty means info.
	Level string
	// Format is "console" (human readable) or "json". Empty means console.
	Format string
	// File, when set, receives JSON lines through a rotating writer in
	// addition to the console/stdout output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ParseLevel maps a level name to a zerolog level. Unknown names are an error.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "off", "disabled", "none":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

// NewFileWriter returns a size-rotated writer for path, filling unset limits
// with the package defaults.
func NewFileWriter(cfg Config) *lumberjack.Logger {
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	if lj.MaxSize <= 0 {
		lj.MaxSize = DefaultMaxSizeMB
	}
	if lj.MaxBackups <= 0 {
		lj.MaxBackups = DefaultMaxBackups
	}
	if lj.MaxAge <= 0 {
		lj.MaxAge = DefaultMaxAgeDays
	}
	return lj
}

// New builds a logger writing to out (stderr when nil). The returned closer
// flushes and closes the log file, if any.
func New(cfg Config, out io.Writer) (zerolog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	if out == nil {
		out = os.Stderr
	}
	var primary io.Writer
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console", "text":
		primary = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	case "json":
		primary = out
	default:
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	w := primary
	if cfg.File != "" {
		fw := NewFileWriter(cfg)
		closer = fw
		w = zerolog.MultiLevelWriter(primary, fw)
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "img2imgd").Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
