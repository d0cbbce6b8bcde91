package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeops-dev/registry/pkg/client"
)

var (
	serverURL string
	apiToken  string
	teamID    string
)

func newClient() *client.Client {
	token := apiToken
	if token == "" {
		token = os.Getenv("CODEOPS_TOKEN")
	}
	return client.New(serverURL, token)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health and team statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		c := newClient()
		if err := c.Healthz(ctx); err != nil {
			return fmt.Errorf("server unreachable at %s: %w", serverURL, err)
		}
		fmt.Printf("Server: %s (healthy)\n", serverURL)

		if teamID == "" {
			return nil
		}
		stats, err := c.TeamStats(ctx, teamID)
		if err != nil {
			return err
		}
		fmt.Printf("Team: %s\n", teamID)
		fmt.Printf("  Services:           %d\n", stats.TotalServices)
		fmt.Printf("  Dependencies:       %d\n", stats.TotalDependencies)
		fmt.Printf("  Solutions:          %d\n", stats.TotalSolutions)
		fmt.Printf("  No dependencies:    %d\n", stats.ServicesWithNoDependencies)
		fmt.Printf("  No consumers:       %d\n", stats.ServicesWithNoConsumers)
		fmt.Printf("  Orphaned:           %d\n", stats.OrphanedServices)
		fmt.Printf("  Max dependency depth: %d\n", stats.MaxDependencyDepth)
		return nil
	},
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Inspect registered services",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the team's services",
	RunE: func(cmd *cobra.Command, args []string) error {
		if teamID == "" {
			return fmt.Errorf("--team is required")
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		services, err := newClient().ListServices(ctx, teamID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tNAME\tTYPE\tSTATUS\tHEALTH")
		for _, svc := range services {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				svc.Slug, svc.Name, svc.Type, svc.Status, svc.LastHealthStatus)
		}
		return w.Flush()
	},
}

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, servicesCmd} {
		cmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "registry server URL")
		cmd.PersistentFlags().StringVar(&apiToken, "token", "", "bearer token (or CODEOPS_TOKEN)")
		cmd.PersistentFlags().StringVar(&teamID, "team", "", "team id")
	}
	servicesCmd.AddCommand(servicesListCmd)
}
