package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options carries the settings for every executor kind; each kind reads only
// the fields it needs.
type Options struct {
	SDBin          string
	Threads        int
	ExtraArgs      []string
	ServerURL      string
	ServerAPIKey   string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// Kinds lists the executor names accepted by New.
var Kinds = []string{"sdcpp", "server"}

// kindAliases maps alternative names to an entry of Kinds.
var kindAliases = map[string]string{"": "sdcpp", "sd": "sdcpp", "a1111": "server"}

// ParseKind normalizes an executor name to an entry of Kinds without building
// the executor.
func ParseKind(name string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(name))
	if a, ok := kindAliases[k]; ok {
		k = a
	}
	if !slices.Contains(Kinds, k) {
		return "", fmt.Errorf("unknown executor %q (want one of %s)", name, strings.Join(Kinds, ", "))
	}
	return k, nil
}

// New returns the executor registered under name.
func New(name string, o Options) (Executor, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "sdcpp":
		return NewSDCppExecutor(SDCppConfig{
			Bin:       o.SDBin,
			Threads:   o.Threads,
			ExtraArgs: o.ExtraArgs,
			Logger:    o.Logger.With().Str("executor", "sdcpp").Logger(),
		}), nil
	default:
		return NewServerExecutor(ServerConfig{
			BaseURL:        o.ServerURL,
			APIKey:         o.ServerAPIKey,
			RequestTimeout: o.RequestTimeout,
			ConnectTimeout: o.ConnectTimeout,
			Logger:         o.Logger.With().Str("executor", "server").Logger(),
		}), nil
	}
}
