package workstations

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/solutions"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

type testEngines struct {
	store     *storage.Store
	profiles  *Engine
	solutions *solutions.Engine
	graph     *graph.Engine
}

func newTestEngines(t *testing.T) *testEngines {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	limits := config.Default().Limits
	return &testEngines{
		store:     store,
		profiles:  NewEngine(store, nil, limits),
		solutions: solutions.NewEngine(store, nil, limits),
		graph:     graph.NewEngine(store, nil, limits.MaxDependenciesPerService),
	}
}

func putService(t *testing.T, store *storage.Store, id, teamID, slug string) *types.Service {
	t.Helper()
	now := time.Now().UTC()
	svc := &types.Service{
		ID:               id,
		TeamID:           teamID,
		Name:             slug,
		Slug:             slug,
		Type:             types.ServiceTypeGoAPI,
		Status:           types.ServiceStatusActive,
		LastHealthStatus: types.HealthUnknown,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutService(svc)
	}))
	return svc
}

func mustDepend(t *testing.T, e *graph.Engine, source, target string) {
	t.Helper()
	_, err := e.CreateDependency(graph.CreateDependencyRequest{
		SourceID: source,
		TargetID: target,
		Type:     types.DependencyHTTPREST,
	})
	require.NoError(t, err)
}

func TestCreateProfileComputesStartupOrder(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")
	putService(t, te.store, "db", "team-a", "db")
	putService(t, te.store, "cache", "team-a", "cache")
	mustDepend(t, te.graph, "api", "db")
	mustDepend(t, te.graph, "api", "cache")

	profile, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "full-stack",
		ServiceIDs: []string{"api", "db", "cache"},
		CreatedBy:  "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cache", "db", "api"}, profile.StartupOrder)
	assert.False(t, profile.IsDefault)
}

func TestCreateProfileValidation(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")
	putService(t, te.store, "other", "team-b", "other")

	_, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{ServiceIDs: []string{"api"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile name must not be empty")

	_, err = te.profiles.CreateProfile("team-a", CreateProfileRequest{Name: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires explicit service ids or a solution")

	_, err = te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "p",
		ServiceIDs: []string{"other"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service other belongs to a different team")

	_, err = te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "ok",
		ServiceIDs: []string{"api"},
	})
	require.NoError(t, err)

	_, err = te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "ok",
		ServiceIDs: []string{"api"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `profile named "ok" already exists`)
}

func TestCreateProfileCap(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	limits := config.Default().Limits
	limits.MaxWorkstationProfilesPerTeam = 1
	engine := NewEngine(store, nil, limits)
	putService(t, store, "api", "team-a", "api")

	_, err = engine.CreateProfile("team-a", CreateProfileRequest{Name: "one", ServiceIDs: []string{"api"}})
	require.NoError(t, err)

	_, err = engine.CreateProfile("team-a", CreateProfileRequest{Name: "two", ServiceIDs: []string{"api"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has reached the maximum of 1 workstation profiles")
}

func TestCreateFromSolution(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")
	putService(t, te.store, "db", "team-a", "db")
	mustDepend(t, te.graph, "api", "db")
	sol, err := te.solutions.CreateSolution("team-a", solutions.CreateSolutionRequest{Name: "Platform"})
	require.NoError(t, err)
	for _, id := range []string{"api", "db"} {
		_, err = te.solutions.AddMember(sol.ID, solutions.AddMemberRequest{ServiceID: id})
		require.NoError(t, err)
	}

	profile, err := te.profiles.CreateFromSolution("team-a", sol.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, "Solution: Platform", profile.Name)
	assert.Equal(t, sol.ID, profile.SolutionID)
	assert.ElementsMatch(t, []string{"api", "db"}, profile.ServiceIDs)
	assert.Equal(t, []string{"db", "api"}, profile.StartupOrder)

	_, err = te.profiles.CreateFromSolution("team-b", sol.ID, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to a different team")
}

func TestCreateFromEmptySolution(t *testing.T) {
	te := newTestEngines(t)
	sol, err := te.solutions.CreateSolution("team-a", solutions.CreateSolutionRequest{Name: "Empty"})
	require.NoError(t, err)

	_, err = te.profiles.CreateFromSolution("team-a", sol.ID, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no members")
}

func TestDefaultProfileIsExclusive(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")

	first, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "first",
		ServiceIDs: []string{"api"},
		IsDefault:  true,
	})
	require.NoError(t, err)

	second, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "second",
		ServiceIDs: []string{"api"},
		IsDefault:  true,
	})
	require.NoError(t, err)

	got, err := te.profiles.GetDefault("team-a")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	demoted, err := te.profiles.GetProfile(first.ID)
	require.NoError(t, err)
	assert.False(t, demoted.IsDefault)

	promoted, err := te.profiles.SetDefault(first.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsDefault)

	got, err = te.profiles.GetDefault("team-a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestGetDefaultWithoutOne(t *testing.T) {
	te := newTestEngines(t)
	_, err := te.profiles.GetDefault("team-a")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateProfileRecomputesOrder(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")
	putService(t, te.store, "db", "team-a", "db")
	mustDepend(t, te.graph, "api", "db")

	profile, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "minimal",
		ServiceIDs: []string{"api"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"api"}, profile.StartupOrder)

	updated, err := te.profiles.UpdateProfile(profile.ID, UpdateProfileRequest{
		ServiceIDs: []string{"api", "db"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api"}, updated.StartupOrder)

	desc := "workstation set"
	updated, err = te.profiles.UpdateProfile(profile.ID, UpdateProfileRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "workstation set", updated.Description)
	assert.Equal(t, "minimal", updated.Name)
}

func TestRefreshStartupOrder(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")
	putService(t, te.store, "db", "team-a", "db")

	profile, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "pair",
		ServiceIDs: []string{"api", "db"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db"}, profile.StartupOrder, "no edges yet, slug order")

	mustDepend(t, te.graph, "api", "db")

	refreshed, err := te.profiles.RefreshStartupOrder(profile.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "api"}, refreshed.StartupOrder)
}

func TestListProfilesSorted(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")
	for _, name := range []string{"zeta", "alpha"} {
		_, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{
			Name:       name,
			ServiceIDs: []string{"api"},
		})
		require.NoError(t, err)
	}

	profiles, err := te.profiles.ListProfiles("team-a")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alpha", profiles[0].Name)
	assert.Equal(t, "zeta", profiles[1].Name)
}

func TestDeleteProfile(t *testing.T) {
	te := newTestEngines(t)
	putService(t, te.store, "api", "team-a", "api")
	profile, err := te.profiles.CreateProfile("team-a", CreateProfileRequest{
		Name:       "gone",
		ServiceIDs: []string{"api"},
	})
	require.NoError(t, err)

	require.NoError(t, te.profiles.DeleteProfile(profile.ID))
	assert.True(t, apperrors.IsNotFound(te.profiles.DeleteProfile(profile.ID)))

	_, err = te.profiles.GetProfile(profile.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
