package seed

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

func runSeed(t *testing.T) (*storage.Store, *config.Config) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	require.NoError(t, Run(store, cfg))
	return store, cfg
}

func TestRunInstallsFixture(t *testing.T) {
	store, cfg := runSeed(t)

	require.NoError(t, store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		assert.Len(t, services, 6)

		slugs := map[string]*types.Service{}
		for _, svc := range services {
			slugs[svc.Slug] = svc
		}
		for _, want := range []string{
			"api-gateway", "web-app", "user-service",
			"billing-service", "postgres-main", "redis-cache",
		} {
			assert.Contains(t, slugs, want)
		}
		assert.Equal(t, types.ServiceTypeDatabase, slugs["postgres-main"].Type)

		edges, err := tx.DependenciesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		assert.Len(t, edges, 7)

		ranges, err := tx.RangesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		assert.Len(t, ranges, len(types.AllPortTypes))

		allocs, err := tx.AllocationsByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		assert.Len(t, allocs, 6, "one port per service")

		routes, err := tx.RoutesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		assert.Len(t, routes, 2)

		solutions, err := tx.SolutionsByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		require.Len(t, solutions, 1)
		members, err := tx.MembersBySolution(solutions[0].ID)
		require.NoError(t, err)
		assert.Len(t, members, 6, "every fixture service joins the solution")

		profiles, err := tx.ProfilesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.True(t, profiles[0].IsDefault)
		assert.Len(t, profiles[0].StartupOrder, 6)
		return nil
	}))
}

func TestRunStartupOrderRespectsEdges(t *testing.T) {
	store, cfg := runSeed(t)

	var order []string
	require.NoError(t, store.View(func(tx *storage.Tx) error {
		profiles, err := tx.ProfilesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		require.Len(t, profiles, 1)

		byID := map[string]string{}
		services, err := tx.ServicesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		for _, svc := range services {
			byID[svc.ID] = svc.Slug
		}
		for _, id := range profiles[0].StartupOrder {
			order = append(order, byID[id])
		}
		return nil
	}))

	position := map[string]int{}
	for i, slug := range order {
		position[slug] = i
	}
	assert.Less(t, position["postgres-main"], position["user-service"])
	assert.Less(t, position["user-service"], position["api-gateway"])
	assert.Less(t, position["api-gateway"], position["web-app"])
}

func TestRunIsIdempotent(t *testing.T) {
	store, cfg := runSeed(t)

	// A second run must leave the populated team untouched.
	require.NoError(t, Run(store, cfg))

	require.NoError(t, store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		assert.Len(t, services, 6)
		solutions, err := tx.SolutionsByTeam(cfg.Seed.TeamID)
		require.NoError(t, err)
		assert.Len(t, solutions, 1)
		return nil
	}))
}

func TestRunRequiresTeamID(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Seed.TeamID = ""
	assert.Error(t, Run(store, cfg))
}
