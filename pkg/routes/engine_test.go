package routes

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
	return NewEngine(store, nil), store
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

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/api/users", "/api/users"},
		{"api/users", "/api/users"},
		{"/API/V1/", "/api/v1"},
		{"  /api/users  ", "/api/users"},
		{"/api/users///", "/api/users"},
		{"/api/{id}/orders", "/api/{id}/orders"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)

		again, err := Normalize(got)
		require.NoError(t, err)
		assert.Equal(t, got, again, "normalize is idempotent")
	}
}

func TestNormalizeRejectsBadCharacters(t *testing.T) {
	for _, in := range []string{"/api/us ers", "/api/<id>", "/api/ünïcode", ""} {
		_, err := Normalize(in)
		require.Error(t, err, in)
		assert.True(t, apperrors.IsValidation(err))
	}
}

func TestOverlaps(t *testing.T) {
	assert.True(t, Overlaps("/api/users", "/api/users"))
	assert.True(t, Overlaps("/api", "/api/users"))
	assert.True(t, Overlaps("/api/users", "/api"))
	assert.False(t, Overlaps("/api/users", "/api/user"))
	assert.False(t, Overlaps("/api/users", "/api/orders"))
}

func TestCreateRoute(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc", "team-a", "api")

	route, err := engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc",
		PathPrefix:  "/API/Users/",
		Methods:     []string{"get", "Post"},
		Environment: "local",
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/users", route.PathPrefix)
	assert.Equal(t, "GET,POST", route.Methods)
	assert.Equal(t, "team-a", route.TeamID)
}

func TestCreateRouteValidatesMethods(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc", "team-a", "api")

	_, err := engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc",
		PathPrefix:  "/api/users",
		Environment: "local",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "route methods must not be empty")

	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc",
		PathPrefix:  "/api/users",
		Methods:     []string{"FETCH"},
		Environment: "local",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid HTTP method "FETCH"`)
}

func TestCreateRouteOverlapMessages(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc-a", "team-a", "api")
	putService(t, store, "svc-b", "team-a", "billing")

	_, err := engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-a",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	require.NoError(t, err)

	// Same owner reclaiming overlapping space.
	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-a",
		PathPrefix:  "/api/users/admin",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service already has a route with overlapping prefix /api/users")

	// A different owner colliding.
	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-b",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefix /api/users conflicts with existing route /api/users")
}

func TestCreateRouteScopes(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc-a", "team-a", "api")
	putService(t, store, "svc-b", "team-a", "billing")
	putService(t, store, "gw-1", "team-a", "gateway-one")
	putService(t, store, "gw-2", "team-a", "gateway-two")

	_, err := engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-a",
		GatewayID:   "gw-1",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	require.NoError(t, err)

	// Same prefix behind a different gateway is a separate scope.
	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-b",
		GatewayID:   "gw-2",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	assert.NoError(t, err)

	// So is the direct (gatewayless) scope.
	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-b",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	assert.NoError(t, err)

	// And a different environment behind the same gateway.
	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-b",
		GatewayID:   "gw-1",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "staging",
	})
	assert.NoError(t, err)

	// Same gateway, same environment collides.
	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc-b",
		GatewayID:   "gw-1",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	assert.Error(t, err)
}

func TestCreateRouteCrossTeamGateway(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc", "team-a", "api")
	putService(t, store, "gw", "team-b", "gateway")

	_, err := engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc",
		GatewayID:   "gw",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway gateway and service api belong to different teams")
}

func TestCheckAvailability(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc", "team-a", "api")

	_, err := engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	require.NoError(t, err)

	res, err := engine.CheckAvailability("team-a", "", "local", "/API/Users/admin/")
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, "/api/users/admin", res.Normalized)
	require.Len(t, res.Conflicting, 1)
	assert.Equal(t, "/api/users", res.Conflicting[0].PathPrefix)

	res, err = engine.CheckAvailability("team-a", "", "local", "/api/orders")
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.Empty(t, res.Conflicting)
}

func TestDeleteRouteFreesPrefix(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc", "team-a", "api")

	route, err := engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteRoute(route.ID))
	assert.True(t, apperrors.IsNotFound(engine.DeleteRoute(route.ID)))

	_, err = engine.CreateRoute(CreateRouteRequest{
		ServiceID:   "svc",
		PathPrefix:  "/api/users",
		Methods:     []string{"GET"},
		Environment: "local",
	})
	assert.NoError(t, err)
}

func TestListRoutes(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc-a", "team-a", "api")
	putService(t, store, "svc-b", "team-a", "billing")
	putService(t, store, "gw", "team-a", "gateway")

	mk := func(serviceID, gatewayID, prefix, env string) {
		t.Helper()
		_, err := engine.CreateRoute(CreateRouteRequest{
			ServiceID:   serviceID,
			GatewayID:   gatewayID,
			PathPrefix:  prefix,
			Methods:     []string{"GET"},
			Environment: env,
		})
		require.NoError(t, err)
	}
	mk("svc-a", "gw", "/api/users", "local")
	mk("svc-b", "gw", "/api/billing", "local")
	mk("svc-a", "", "/internal/users", "staging")

	all, err := engine.ListRoutes("team-a", ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/api/billing", all[0].PathPrefix, "prefix-sorted")

	byEnv, err := engine.ListRoutes("team-a", ListFilter{Environment: "staging"})
	require.NoError(t, err)
	require.Len(t, byEnv, 1)
	assert.Equal(t, "/internal/users", byEnv[0].PathPrefix)

	byGateway, err := engine.ListRoutes("team-a", ListFilter{GatewayID: "gw"})
	require.NoError(t, err)
	assert.Len(t, byGateway, 2)

	byService, err := engine.ListRoutes("team-a", ListFilter{ServiceID: "svc-b"})
	require.NoError(t, err)
	require.Len(t, byService, 1)
	assert.Equal(t, "/api/billing", byService[0].PathPrefix)

	none, err := engine.ListRoutes("team-empty", ListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
