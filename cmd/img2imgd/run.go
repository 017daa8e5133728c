package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"img2imgd/internal/config"
	"img2imgd/internal/daemon"
	"img2imgd/internal/engine"
	"img2imgd/internal/orchestrator"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)
)

// runOptions configure a headless unattended session.
type runOptions struct {
	// Out receives the PNG of every successful run. A path containing a
	// formatting verb (e.g. out-%03d.png) is formatted with the run number.
	Out string
	// Count stops the session after this many finished runs; 0 runs until
	// the context ends.
	Count int
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		opts      runOptions
		prompt    string
		idleGapMs int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate continuously without the HTTP server",
		Long: "run loads the engine and generates in unattended mode, writing each\n" +
			"result to --out and printing the status line after every run.",
		Example: "  img2imgd run --source photo.png --prompt \"oil painting\" --count 3 --out out-%03d.png",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fl := cmd.Flags()
			cfg, err := g.load(cmd, func(c *config.Config) {
				c.Mode = string(orchestrator.ModeUnattended)
				if fl.Changed("prompt") {
					c.Params.Prompt = prompt
				}
				if fl.Changed("idle-gap-ms") {
					c.IdleGapMs = idleGapMs
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
			return runHeadless(ctx, cfg, logger, nil, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "output.png", "Where to write each generated image")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "Number of runs before exiting (0 = until interrupted)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt (overrides the persisted parameters)")
	cmd.Flags().IntVar(&idleGapMs, "idle-gap-ms", 0, "Pause between runs in milliseconds")
	return cmd
}

// runHeadless drives an unattended daemon until opts.Count runs have finished,
// the engine fails to load, or ctx ends.
func runHeadless(ctx context.Context, cfg config.Config, logger zerolog.Logger, exec engine.Executor, w io.Writer, opts runOptions) error {
	if opts.Count < 0 {
		return fmt.Errorf("count must be >= 0")
	}
	var written atomic.Int64
	sink := func(runID string, img *image.RGBA) {
		n := written.Add(1)
		if opts.Out == "" || (opts.Count > 0 && n > int64(opts.Count)) {
			return
		}
		path := outputPath(opts.Out, n)
		if err := engine.WritePNGFile(path, img); err != nil {
			logger.Error().Err(err).Str("run_id", runID).Str("path", path).Msg("write output")
			return
		}
		logger.Debug().Str("run_id", runID).Str("path", path).Msg("output written")
	}

	d, err := daemon.New(daemon.Options{Config: cfg, Executor: exec, OutputSink: sink, MaxRuns: opts.Count, Logger: &logger})
	if err != nil {
		return err
	}
	defer d.Close()

	events, cancelEvents := d.Events().Subscribe(64)
	defer cancelEvents()
	if err := d.Start(); err != nil {
		return err
	}
	runCtx, stopRuns := context.WithCancel(ctx)
	defer stopRuns()
	loopDone := make(chan error, 1)
	go func(c chan<- error) { c <- d.Run(runCtx) }(loopDone)

	started, finished, failed := 0, 0, 0
	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-loopDone:
			if errors.Is(err, context.Canceled) && ctx.Err() == nil {
				// stopped after the last start; keep reading until it finishes
				loopDone = nil
				continue
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				runErr = err
			}
			break loop
		case e, ok := <-events:
			if !ok {
				break loop
			}
			switch e.Name {
			case orchestrator.EventInitReady:
				infoColor.Fprintf(w, "engine ready (%v ms)\n", e.Fields["dur_ms"])
			case orchestrator.EventInitFailed:
				runErr = fmt.Errorf("engine initialization failed: %v", e.Fields["error"])
				break loop
			case orchestrator.EventRunStart:
				started++
				// The last run is in flight; let it finish but start no more.
				if opts.Count > 0 && started >= opts.Count {
					stopRuns()
				}
			case orchestrator.EventRunDone:
				finished++
				okColor.Fprintf(w, "[%d] %s  %v\n", finished, e.RunID, e.Fields["status"])
			case orchestrator.EventRunFailed:
				finished++
				failed++
				failColor.Fprintf(w, "[%d] %s  failed: %v\n", finished, e.RunID, e.Fields["error"])
			}
			if opts.Count > 0 && finished >= opts.Count {
				break loop
			}
		}
	}
	stopRuns()
	if err := d.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr == nil && failed > 0 && failed == finished {
		runErr = fmt.Errorf("all %d runs failed", failed)
	}
	return runErr
}

func outputPath(pattern string, n int64) string {
	if strings.Contains(pattern, "%") {
		return fmt.Sprintf(pattern, n)
	}
	return pattern
}
