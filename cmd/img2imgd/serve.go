package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"img2imgd/internal/config"
	"img2imgd/internal/daemon"
	"img2imgd/internal/engine"
	"img2imgd/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr        string
		mode        string
		idleGapMs   int
		corsOrigins string
	)
	def := config.Default()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon",
		Example: "  img2imgd serve --resource-dir ~/models/sd --source photo.png\n" +
			"  img2imgd serve --mode unattended --executor server --server-url http://127.0.0.1:7860",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fl := cmd.Flags()
			cfg, err := g.load(cmd, func(c *config.Config) {
				if fl.Changed("addr") {
					c.Addr = addr
				}
				if fl.Changed("mode") {
					c.Mode = mode
				}
				if fl.Changed("idle-gap-ms") {
					c.IdleGapMs = idleGapMs
				}
				if fl.Changed("cors-origins") {
					c.CORSOrigins = config.SplitCSV(corsOrigins)
					c.CORSEnabled = len(c.CORSOrigins) > 0
				}
			})
			if err != nil {
				return err
			}
			logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", def.Addr, "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&mode, "mode", def.Mode, "interactive (POST /generate) or unattended (continuous)")
	cmd.Flags().IntVar(&idleGapMs, "idle-gap-ms", def.IdleGapMs, "Pause between unattended runs in milliseconds")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	return cmd
}

// serve runs the daemon and HTTP server until ctx ends or the listener fails.
// exec overrides the configured executor when non-nil.
func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger, exec engine.Executor) error {
	d, err := daemon.New(daemon.Options{Config: cfg, Executor: exec, Logger: &logger})
	if err != nil {
		return err
	}
	defer d.Close()

	httpapi.SetLogger(logger.With().Str("component", "http").Logger())
	httpapi.Configure(httpapi.Options{
		MaxBodyBytes: cfg.MaxBodyBytes,
		CORSEnabled:  cfg.CORSEnabled,
		CORSOrigins:  cfg.CORSOrigins,
		CORSMethods:  cfg.CORSMethods,
		CORSHeaders:  cfg.CORSHeaders,
	})
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: httpapi.NewMux(d), ReadHeaderTimeout: 10 * time.Second}
	if err := d.Start(); err != nil {
		_ = ln.Close()
		return err
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Str("mode", cfg.Mode).Msg("img2imgd listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	logger.Info().Msg("shutting down")
	// End event streams first so Shutdown does not wait on them.
	cancelBase()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown")
	}
	if err := d.Close(); err != nil {
		logger.Error().Err(err).Msg("close daemon")
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
