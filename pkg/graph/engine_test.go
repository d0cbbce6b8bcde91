package graph

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, nil, 50), store
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

func mustDepend(t *testing.T, e *Engine, source, target string, depType types.DependencyType) *types.ServiceDependency {
	t.Helper()
	edge, err := e.CreateDependency(CreateDependencyRequest{
		SourceID:  source,
		TargetID:  target,
		Type:      depType,
		CreatedBy: "tester",
	})
	require.NoError(t, err)
	return edge
}

func TestCreateDependency(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-a", "db")

	edge, err := engine.CreateDependency(CreateDependencyRequest{
		SourceID:     "api",
		TargetID:     "db",
		Type:         types.DependencyDatabaseShared,
		Description:  "primary store",
		EndpointHint: "jdbc:postgresql://db:5432/app",
		CreatedBy:    "tester",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
	assert.Equal(t, "team-a", edge.TeamID)
	assert.True(t, edge.IsRequired, "edges default to required")

	got, err := engine.GetDependency(edge.ID)
	require.NoError(t, err)
	assert.Equal(t, "primary store", got.Description)
}

func TestCreateDependencyOptionalEdge(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "cache", "team-a", "cache")

	optional := false
	edge, err := engine.CreateDependency(CreateDependencyRequest{
		SourceID:   "api",
		TargetID:   "cache",
		Type:       types.DependencyRedisCache,
		IsRequired: &optional,
	})
	require.NoError(t, err)
	assert.False(t, edge.IsRequired)
}

func TestCreateDependencyRejectsSelfEdge(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")

	_, err := engine.CreateDependency(CreateDependencyRequest{
		SourceID: "api",
		TargetID: "api",
		Type:     types.DependencyHTTPREST,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "service cannot depend on itself")
}

func TestCreateDependencyUnknownEndpoint(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")

	_, err := engine.CreateDependency(CreateDependencyRequest{
		SourceID: "api",
		TargetID: "ghost",
		Type:     types.DependencyHTTPREST,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateDependencyRejectsCrossTeamEdge(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-b", "db")

	_, err := engine.CreateDependency(CreateDependencyRequest{
		SourceID: "api",
		TargetID: "db",
		Type:     types.DependencyDatabaseShared,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "services api and db belong to different teams")
}

func TestCreateDependencyRejectsDuplicate(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-a", "db")
	mustDepend(t, engine, "api", "db", types.DependencyDatabaseShared)

	_, err := engine.CreateDependency(CreateDependencyRequest{
		SourceID: "api",
		TargetID: "db",
		Type:     types.DependencyDatabaseShared,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency api -> db (DATABASE_SHARED) already exists")

	// A different edge type between the same pair is a distinct edge.
	_, err = engine.CreateDependency(CreateDependencyRequest{
		SourceID: "api",
		TargetID: "db",
		Type:     types.DependencyHTTPREST,
	})
	assert.NoError(t, err)
}

func TestCreateDependencyEnforcesOutDegreeCap(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	engine := NewEngine(store, nil, 2)

	putService(t, store, "api", "team-a", "api")
	putService(t, store, "d1", "team-a", "d1")
	putService(t, store, "d2", "team-a", "d2")
	putService(t, store, "d3", "team-a", "d3")

	mustDepend(t, engine, "api", "d1", types.DependencyHTTPREST)
	mustDepend(t, engine, "api", "d2", types.DependencyHTTPREST)

	_, err = engine.CreateDependency(CreateDependencyRequest{
		SourceID: "api",
		TargetID: "d3",
		Type:     types.DependencyHTTPREST,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service api has reached the maximum of 2 dependencies")
}

func TestCreateDependencyRejectsCycle(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "a", "team-a", "a")
	putService(t, store, "b", "team-a", "b")
	putService(t, store, "c", "team-a", "c")

	mustDepend(t, engine, "a", "b", types.DependencyHTTPREST)
	mustDepend(t, engine, "b", "c", types.DependencyHTTPREST)

	_, err := engine.CreateDependency(CreateDependencyRequest{
		SourceID: "c",
		TargetID: "a",
		Type:     types.DependencyHTTPREST,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "dependency c -> a would create a cycle")
}

func TestRemoveDependency(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-a", "db")
	created := mustDepend(t, engine, "api", "db", types.DependencyDatabaseShared)

	require.NoError(t, engine.RemoveDependency(created.ID))

	_, err := engine.GetDependency(created.ID)
	assert.True(t, apperrors.IsNotFound(err))

	err = engine.RemoveDependency("missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGraphView(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "1", "team-a", "zeta")
	putService(t, store, "2", "team-a", "alpha")
	putService(t, store, "3", "team-b", "other")
	mustDepend(t, engine, "1", "2", types.DependencyHTTPREST)

	view, err := engine.Graph("team-a")
	require.NoError(t, err)
	require.Len(t, view.Nodes, 2)
	assert.Equal(t, "alpha", view.Nodes[0].Slug, "nodes sort by slug")
	assert.Equal(t, "zeta", view.Nodes[1].Slug)
	assert.Equal(t, types.HealthUnknown, view.Nodes[0].Health)
	require.Len(t, view.Edges, 1)

	empty, err := engine.Graph("team-empty")
	require.NoError(t, err)
	assert.Empty(t, empty.Nodes)
	assert.NotNil(t, empty.Edges)
}

func TestImpactReport(t *testing.T) {
	engine, store := newTestEngine(t)
	// gateway -> api -> db, worker -> db
	putService(t, store, "gw", "team-a", "gateway")
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-a", "db")
	putService(t, store, "wrk", "team-a", "worker")
	mustDepend(t, engine, "gw", "api", types.DependencyHTTPREST)
	mustDepend(t, engine, "api", "db", types.DependencyDatabaseShared)
	mustDepend(t, engine, "wrk", "db", types.DependencyDatabaseShared)

	report, err := engine.Impact("db")
	require.NoError(t, err)
	assert.Equal(t, "db", report.ServiceID)
	assert.Equal(t, 3, report.TotalAffected)
	require.Len(t, report.Affected, 3)

	// Depth 1: api and worker sorted by name, depth 2: gateway.
	assert.Equal(t, "api", report.Affected[0].Slug)
	assert.Equal(t, 1, report.Affected[0].Depth)
	assert.Equal(t, types.DependencyDatabaseShared, report.Affected[0].ConnectionType)
	assert.Equal(t, "worker", report.Affected[1].Slug)
	assert.Equal(t, 1, report.Affected[1].Depth)
	assert.Equal(t, "gateway", report.Affected[2].Slug)
	assert.Equal(t, 2, report.Affected[2].Depth)
}

func TestImpactLeafService(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")

	report, err := engine.Impact("api")
	require.NoError(t, err)
	assert.Zero(t, report.TotalAffected)
	assert.NotNil(t, report.Affected)

	_, err = engine.Impact("missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStartupOrder(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-a", "db")
	putService(t, store, "cache", "team-a", "cache")
	mustDepend(t, engine, "api", "db", types.DependencyDatabaseShared)
	mustDepend(t, engine, "api", "cache", types.DependencyRedisCache)

	order, err := engine.StartupOrder("team-a")
	require.NoError(t, err)
	require.Len(t, order, 3)
	assert.Equal(t, "cache", order[0].Slug)
	assert.Equal(t, "db", order[1].Slug)
	assert.Equal(t, "api", order[2].Slug)
}

func TestDetectCycles(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "a", "team-a", "a")
	putService(t, store, "b", "team-a", "b")

	ids, err := engine.DetectCycles("team-a")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	// The engine refuses cycle-forming edges, so plant one directly.
	mustDepend(t, engine, "a", "b", types.DependencyHTTPREST)
	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutDependency(&types.ServiceDependency{
			ID:        "back-edge",
			TeamID:    "team-a",
			SourceID:  "b",
			TargetID:  "a",
			Type:      types.DependencyHTTPREST,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}))

	ids, err = engine.DetectCycles("team-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestListForService(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-a", "db")
	putService(t, store, "gw", "team-a", "gateway")
	mustDepend(t, engine, "api", "db", types.DependencyDatabaseShared)
	mustDepend(t, engine, "gw", "api", types.DependencyHTTPREST)

	deps, err := engine.ListForService("api")
	require.NoError(t, err)
	require.Len(t, deps.Upstream, 1)
	assert.Equal(t, "db", deps.Upstream[0].ServiceSlug)
	assert.Equal(t, types.DependencyDatabaseShared, deps.Upstream[0].Type)
	require.Len(t, deps.Downstream, 1)
	assert.Equal(t, "gateway", deps.Downstream[0].ServiceSlug)

	_, err = engine.ListForService("missing")
	assert.True(t, apperrors.IsNotFound(err))
}
