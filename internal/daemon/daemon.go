// Package daemon assembles the long-running service from configuration: the
// engine executor, the parameter store, run history and the orchestrator,
// with an event broadcaster in front of them for streaming clients.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"img2imgd/internal/common/fsutil"
	"img2imgd/internal/config"
	"img2imgd/internal/engine"
	"img2imgd/internal/history"
	"img2imgd/internal/orchestrator"
	"img2imgd/internal/params"
	"img2imgd/internal/pipeline"
)

// Options controls how New builds a Daemon. Executor and Source override the
// corresponding config entries; tests use them to avoid real engines and files.
type Options struct {
	Config   config.Config
	Executor engine.Executor
	Source   image.Image
	// Publisher, when set, also receives every orchestrator event.
	Publisher orchestrator.EventPublisher
	// OutputSink is handed to the orchestrator unchanged.
	OutputSink func(runID string, img *image.RGBA)
	// MaxRuns caps the runs started by unattended polling; zero is unlimited.
	MaxRuns int
	Logger  *zerolog.Logger
}

// Daemon owns every long-lived component of the service.
type Daemon struct {
	cfg     config.Config
	log     zerolog.Logger
	orch    *orchestrator.Orchestrator
	params  *params.Store
	history *history.Store
	bus     *orchestrator.Broadcaster
	started time.Time

	closeOnce sync.Once
	closeErr  error
}

// New validates the configuration and wires the components. The engine is not
// loaded until Start.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	mode, _ := orchestrator.ParseMode(cfg.Mode)
	target, _ := engine.ParseComputeTarget(cfg.ComputeTarget)
	resDir, err := cfg.ResolvedResourceDir()
	if err != nil {
		return nil, fmt.Errorf("resource dir: %w", err)
	}

	exec := opts.Executor
	if exec == nil {
		exec, err = engine.New(cfg.Executor, engine.Options{
			SDBin:          cfg.SDBin,
			Threads:        cfg.SDThreads,
			ExtraArgs:      cfg.SDExtraArgs,
			ServerURL:      cfg.ServerURL,
			ServerAPIKey:   cfg.ServerAPIKey,
			RequestTimeout: cfg.RequestTimeout(),
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}
	}

	src := opts.Source
	if src == nil {
		p, err := config.ResolvePath(cfg.SourceImage)
		if err != nil {
			return nil, fmt.Errorf("source image: %w", err)
		}
		if src, err = engine.LoadImageFile(p); err != nil {
			return nil, fmt.Errorf("source image %s: %w", p, err)
		}
	}

	store := params.NewStore(cfg.Params)
	store.SetLogger(logger)
	if cfg.ParamsFile != "" {
		p, err := config.ResolvePath(cfg.ParamsFile)
		if err != nil {
			return nil, fmt.Errorf("params file: %w", err)
		}
		if err := store.Persist(p); err != nil {
			return nil, err
		}
	}

	if !fsutil.IsDir(resDir) {
		logger.Warn().Str("resource_dir", resDir).Msg("resource dir does not exist; engine initialization will fail")
	}

	d := &Daemon{
		cfg:     cfg,
		log:     logger,
		params:  store,
		started: time.Now(),
	}
	d.bus = orchestrator.NewBroadcaster(&logPublisher{log: logger, next: opts.Publisher})

	ocfg := orchestrator.Config{
		Executor:     exec,
		Engine:       pipeline.EngineConfig{ResourceDir: resDir, ComputeTarget: target},
		Source:       src,
		Params:       store,
		Mode:         mode,
		IdleGap:      cfg.IdleGap(),
		PollInterval: cfg.PollInterval(),
		MaxRuns:      opts.MaxRuns,
		RunTimeout:   cfg.RunTimeout(),
		InitTimeout:  cfg.InitTimeout(),
		DeferStart:   true,
		Publisher:    d.bus,
		OutputSink:   opts.OutputSink,
		Logger:       &logger,
	}
	if cfg.HistoryDB != "" {
		p, err := config.ResolvePath(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("history db: %w", err)
		}
		h, err := history.Open(p)
		if err != nil {
			return nil, err
		}
		if err := openHistory(context.Background(), h, cfg.HistoryRetention(), logger); err != nil {
			_ = h.Close()
			return nil, err
		}
		d.history = h
		ocfg.Recorder = h
	}
	d.orch = orchestrator.New(ocfg)
	logger.Info().
		Str("mode", string(mode)).
		Str("resource_dir", resDir).
		Str("compute_target", string(target)).
		Str("executor", cfg.Executor).
		Bool("history", d.history != nil).
		Msg("daemon configured")
	return d, nil
}

// openHistory applies retention and logs what the database holds.
func openHistory(ctx context.Context, h *history.Store, retention time.Duration, logger zerolog.Logger) error {
	if retention > 0 {
		n, err := h.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info().Int64("removed", n).Dur("retention", retention).Msg("pruned run history")
		}
	}
	n, err := h.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info().Str("path", h.Path()).Int("runs", n).Msg("run history opened")
	return nil
}

// Start begins loading the engine in the background.
func (d *Daemon) Start() error {
	return d.orch.Start()
}

// Run drives the unattended poll loop until ctx is done or the daemon closes.
// In interactive mode it only waits.
func (d *Daemon) Run(ctx context.Context) error {
	return d.orch.Run(ctx)
}

// Close disposes the orchestrator, waiting for any in-flight work, and then
// closes the history database. Safe to call more than once.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if err := d.orch.Close(); err != nil {
			errs = append(errs, err)
		}
		if d.history != nil {
			if err := d.history.Close(); err != nil && !errors.Is(err, history.ErrClosed) {
				errs = append(errs, err)
			}
		}
		d.closeErr = errors.Join(errs...)
		d.log.Info().Err(d.closeErr).Msg("daemon closed")
	})
	return d.closeErr
}

func (d *Daemon) Orchestrator() *orchestrator.Orchestrator { return d.orch }
func (d *Daemon) ParamsStore() *params.Store               { return d.params }
func (d *Daemon) Config() config.Config                    { return d.cfg }

// Events returns the broadcaster all orchestrator events pass through.
func (d *Daemon) Events() *orchestrator.Broadcaster { return d.bus }
