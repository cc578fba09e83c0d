package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/forceviz/forceviz/internal/config"
	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/engine"
	"github.com/forceviz/forceviz/internal/injector"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	listenAddr string
	logLevel   string
	watch      bool
)

var rootCmd = &cobra.Command{
	Use:   "forceviz",
	Short: "Serve the force sensor visualization",
	Long: `forceviz runs the sensor field on a fixed-rate loop and exposes it over
an HTTP API, streaming every changed frame to websocket clients on /ws
and, when server.quic_addr is set, to QUIC feed subscribers.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address, overrides server.listen_addr")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides log.level")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "apply ramp changes from the config file while running")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := injector.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() { _ = app.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var watcher *config.Watcher
	if watch && configPath != "" {
		watcher, err = config.NewWatcher(configPath, func(c config.Config) {
			applyRamp(ctx, app, c)
		}, config.WithWatchLogger(app.Logger))
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	app.Logger.Info("Starting forceviz",
		log.String("addr", cfg.Server.ListenAddr),
		log.Int("tick_rate", cfg.Field.TickRate),
		log.String("stale_policy", cfg.Field.StalePolicy))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := app.Loop.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return app.Server.Run(gctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}
	if app.QUIC != nil {
		g.Go(func() error {
			return app.QUIC.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		app.Logger.Error("Stopped with error", log.Error(err))
		return err
	}
	app.Logger.Info("Shutdown complete")
	return nil
}

func applyRamp(ctx context.Context, app *injector.App, c config.Config) {
	ramp, err := c.Ramp.Build()
	if err != nil {
		app.Logger.Warn("Reloaded ramp rejected", log.Error(err))
		return
	}
	var setErr error
	if err := app.Loop.Apply(ctx, func(s *engine.State) {
		setErr = s.Field.SetRamp(ramp)
	}); err != nil {
		app.Logger.Warn("Reloaded ramp not applied", log.Error(err))
		return
	}
	if setErr != nil {
		app.Logger.Warn("Reloaded ramp rejected", log.Error(setErr))
	}
}
