package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/seed"
	"github.com/codeops-dev/registry/pkg/storage"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the demo fixture into the data file",
	Long: `Seed installs a small demo ecosystem for the configured team:
default port ranges, six services with allocations, an acyclic
dependency graph, gateway routes, env configs, one solution and a
default workstation profile. Running against a populated team is a
no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		log.Init(log.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

		store, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		if err := seed.Run(store, cfg); err != nil {
			return err
		}
		fmt.Printf("Seed complete for team %s (data file %s)\n", cfg.Seed.TeamID, cfg.Storage.Path)
		return nil
	},
}
