package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"img2imgd/internal/config"
	"img2imgd/internal/logging"
)

// globalFlags are shared by every subcommand. A flag only overrides the
// config file and IMG2IMGD_* environment when it was set explicitly.
type globalFlags struct {
	configPath string
	envFile    string

	logLevel  string
	logFormat string
	logFile   string

	assetsDir     string
	resourceDir   string
	computeTarget string
	executor      string
	sdBin         string
	serverURL     string
	source        string
	paramsFile    string
	historyDB     string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	def := config.Default()
	root := &cobra.Command{
		Use:           "img2imgd",
		Short:         "Single-flight image-to-image diffusion daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&g.envFile, "env-file", ".env", "Dotenv file loaded before reading IMG2IMGD_* variables")
	pf.StringVar(&g.logLevel, "log-level", def.LogLevel, "Log level: trace|debug|info|warn|error|off")
	pf.StringVar(&g.logFormat, "log-format", def.LogFormat, "Log format: console|json")
	pf.StringVar(&g.logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
	pf.StringVar(&g.assetsDir, "assets-dir", def.AssetsDir, "Base directory for a relative --resource-dir")
	pf.StringVar(&g.resourceDir, "resource-dir", def.ResourceDir, "Directory holding the model weights")
	pf.StringVar(&g.computeTarget, "compute-target", def.ComputeTarget, "cpu_only|gpu_preferred|all")
	pf.StringVar(&g.executor, "executor", def.Executor, "Engine executor: sdcpp|server")
	pf.StringVar(&g.sdBin, "sd-bin", "", "Path to the stable-diffusion.cpp sd binary (default: search)")
	pf.StringVar(&g.serverURL, "server-url", "", "Base URL of an AUTOMATIC1111-compatible server")
	pf.StringVar(&g.source, "source", def.SourceImage, "Source image every run starts from")
	pf.StringVar(&g.paramsFile, "params-file", def.ParamsFile, "File the current parameters persist to (empty disables)")
	pf.StringVar(&g.historyDB, "history-db", def.HistoryDB, "SQLite run history (empty disables)")

	root.AddCommand(newServeCmd(g), newRunCmd(g), newResourcesCmd(g))
	return root
}

// load builds the effective configuration: defaults, then the config file,
// then the environment, then explicit flags, then mut for subcommand flags.
func (g *globalFlags) load(cmd *cobra.Command, mut func(*config.Config)) (config.Config, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return config.Config{}, err
	}
	cfg := config.Default()
	if g.configPath != "" {
		c, err := config.Load(g.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = c
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		return config.Config{}, err
	}
	fl := cmd.Flags()
	for name, v := range map[string]struct {
		dst *string
		val string
	}{
		"log-level":      {&cfg.LogLevel, g.logLevel},
		"log-format":     {&cfg.LogFormat, g.logFormat},
		"log-file":       {&cfg.LogFile, g.logFile},
		"assets-dir":     {&cfg.AssetsDir, g.assetsDir},
		"resource-dir":   {&cfg.ResourceDir, g.resourceDir},
		"compute-target": {&cfg.ComputeTarget, g.computeTarget},
		"executor":       {&cfg.Executor, g.executor},
		"sd-bin":         {&cfg.SDBin, g.sdBin},
		"server-url":     {&cfg.ServerURL, g.serverURL},
		"source":         {&cfg.SourceImage, g.source},
		"params-file":    {&cfg.ParamsFile, g.paramsFile},
		"history-db":     {&cfg.HistoryDB, g.historyDB},
	} {
		if fl.Changed(name) {
			*v.dst = v.val
		}
	}
	if mut != nil {
		mut(&cfg)
	}
	return cfg, cfg.Validate()
}

// newLogger builds the process logger from cfg. The closer flushes the log
// file, if any.
func newLogger(cfg config.Config, out io.Writer) (zerolog.Logger, io.Closer, error) {
	file, err := config.ResolvePath(cfg.LogFile)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: file}, out)
}
