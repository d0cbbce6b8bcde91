package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codeops-dev/registry/pkg/api"
	"github.com/codeops-dev/registry/pkg/auth"
	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/events"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/metrics"
	"github.com/codeops-dev/registry/pkg/seed"
	"github.com/codeops-dev/registry/pkg/storage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the registry HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
		logger := log.WithComponent("server")

		store, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		verifier, err := buildVerifier(cfg)
		if err != nil {
			return err
		}

		if cfg.Seed.OnBoot {
			if err := seed.Run(store, cfg); err != nil {
				return fmt.Errorf("seed on boot: %w", err)
			}
		}

		metrics.SetVersion(Version)

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		collector := metrics.NewCollector(store)
		collector.Start()
		defer collector.Stop()

		server := api.NewServer(cfg, store, verifier, broker)
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

// buildVerifier wires the static token verifier when a token file is
// configured; without one every request would 401, so the missing file
// is an error rather than a silent lockout.
func buildVerifier(cfg *config.Config) (auth.Verifier, error) {
	if cfg.Auth.TokenFile == "" {
		return nil, fmt.Errorf("auth.tokenFile is required (or plug in an external verifier)")
	}
	return auth.LoadStaticVerifier(cfg.Auth.TokenFile)
}
