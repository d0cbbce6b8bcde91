package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/envconfig"
	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/ports"
	"github.com/codeops-dev/registry/pkg/solutions"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

type testEngines struct {
	store     *storage.Store
	services  *Engine
	ports     *ports.Engine
	graph     *graph.Engine
	solutions *solutions.Engine
	env       *envconfig.Engine
}

func newTestEngines(t *testing.T) *testEngines {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	limits := config.Default().Limits
	portEngine := ports.NewEngine(store, nil, config.DefaultRangeBounds())
	return &testEngines{
		store:     store,
		services:  NewEngine(store, nil, portEngine, limits),
		ports:     portEngine,
		graph:     graph.NewEngine(store, nil, limits.MaxDependenciesPerService),
		solutions: solutions.NewEngine(store, nil, limits),
		env:       envconfig.NewEngine(store),
	}
}

func TestCreateServiceDerivesSlug(t *testing.T) {
	te := newTestEngines(t)

	svc, err := te.services.CreateService("team-a", CreateServiceRequest{
		Name: "User Service",
		Type: types.ServiceTypeSpringBoot,
	})
	require.NoError(t, err)
	assert.Equal(t, "user-service", svc.Slug)
	assert.Equal(t, types.ServiceStatusActive, svc.Status)
	assert.Equal(t, types.HealthUnknown, svc.LastHealthStatus)
	assert.NotEmpty(t, svc.ID)
}

func TestCreateServiceSuffixesDuplicateSlug(t *testing.T) {
	te := newTestEngines(t)

	for i, want := range []string{"user-service", "user-service-2", "user-service-3"} {
		svc, err := te.services.CreateService("team-a", CreateServiceRequest{
			Name: "User Service",
			Type: types.ServiceTypeSpringBoot,
		})
		require.NoError(t, err, "create %d", i)
		assert.Equal(t, want, svc.Slug)
	}
}

func TestCreateServiceSlugIsTeamScoped(t *testing.T) {
	te := newTestEngines(t)

	for _, team := range []string{"team-a", "team-b"} {
		svc, err := te.services.CreateService(team, CreateServiceRequest{
			Name: "User Service",
			Type: types.ServiceTypeSpringBoot,
		})
		require.NoError(t, err)
		assert.Equal(t, "user-service", svc.Slug)
	}
}

func TestCreateServiceValidation(t *testing.T) {
	te := newTestEngines(t)

	_, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "  "})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = te.services.CreateService("team-a", CreateServiceRequest{
		Name: "ok",
		Slug: "Not_A_Slug",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateServiceTeamCap(t *testing.T) {
	te := newTestEngines(t)
	te.services.limits.MaxServicesPerTeam = 2

	for i := 0; i < 2; i++ {
		_, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "svc", Type: types.ServiceTypeGoAPI})
		require.NoError(t, err)
	}
	_, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "svc", Type: types.ServiceTypeGoAPI})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum of 2 services")
}

func TestListServicesFilters(t *testing.T) {
	te := newTestEngines(t)

	api, err := te.services.CreateService("team-a", CreateServiceRequest{
		Name: "Billing API", Type: types.ServiceTypeGoAPI, Description: "handles invoices",
	})
	require.NoError(t, err)
	_, err = te.services.CreateService("team-a", CreateServiceRequest{
		Name: "Web App", Type: types.ServiceTypeNextJS,
	})
	require.NoError(t, err)
	_, err = te.services.SetStatus(api.ID, types.ServiceStatusDeprecated)
	require.NoError(t, err)

	byType, err := te.services.ListServices("team-a", ListFilter{Type: types.ServiceTypeNextJS})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "web-app", byType[0].Slug)

	byStatus, err := te.services.ListServices("team-a", ListFilter{Status: types.ServiceStatusDeprecated})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "billing-api", byStatus[0].Slug)

	bySearch, err := te.services.ListServices("team-a", ListFilter{Search: "invoices"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "billing-api", bySearch[0].Slug)

	all, err := te.services.ListServices("team-a", ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "billing-api", all[0].Slug)
}

func TestUpdateServiceAppliesPartialFields(t *testing.T) {
	te := newTestEngines(t)
	svc, err := te.services.CreateService("team-a", CreateServiceRequest{
		Name: "Billing API", Type: types.ServiceTypeGoAPI, TechStack: "go-1.25",
	})
	require.NoError(t, err)

	newName := "Billing Service"
	updated, err := te.services.UpdateService(svc.ID, UpdateServiceRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Billing Service", updated.Name)
	assert.Equal(t, "billing-api", updated.Slug, "slug is immutable")
	assert.Equal(t, "go-1.25", updated.TechStack)
}

func TestDeleteServiceBlockedBySolutionMembership(t *testing.T) {
	te := newTestEngines(t)
	svc, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "api", Type: types.ServiceTypeGoAPI})
	require.NoError(t, err)
	sol, err := te.solutions.CreateSolution("team-a", solutions.CreateSolutionRequest{Name: "Platform"})
	require.NoError(t, err)
	_, err = te.solutions.AddMember(sol.ID, solutions.AddMemberRequest{ServiceID: svc.ID})
	require.NoError(t, err)

	err = te.services.DeleteService(svc.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to solutions and cannot be deleted")

	require.NoError(t, te.solutions.RemoveMember(sol.ID, svc.ID))
	require.NoError(t, te.services.DeleteService(svc.ID))
}

func TestDeleteServiceBlockedByRequiredDependents(t *testing.T) {
	te := newTestEngines(t)
	db, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "postgres", Type: types.ServiceTypeDatabase})
	require.NoError(t, err)
	api, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "api", Type: types.ServiceTypeGoAPI})
	require.NoError(t, err)

	dep, err := te.graph.CreateDependency(graph.CreateDependencyRequest{
		SourceID: api.ID,
		TargetID: db.ID,
		Type:     types.DependencyDatabaseShared,
	})
	require.NoError(t, err)

	err = te.services.DeleteService(db.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has active dependents and cannot be deleted")

	require.NoError(t, te.graph.RemoveDependency(dep.ID))
	require.NoError(t, te.services.DeleteService(db.ID))
}

func TestDeleteServiceCascades(t *testing.T) {
	te := newTestEngines(t)
	svc, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "api", Type: types.ServiceTypeGoAPI})
	require.NoError(t, err)

	_, err = te.ports.ManualAllocate(ports.ManualAllocateRequest{
		ServiceID:   svc.ID,
		Environment: ports.DefaultEnvironment,
		Type:        types.PortTypeHTTPAPI,
		Port:        8080,
	})
	require.NoError(t, err)
	_, err = te.env.Upsert(svc.ID, envconfig.UpsertRequest{
		Environment: ports.DefaultEnvironment,
		Key:         "spring.datasource.url",
		Value:       "jdbc:postgresql://localhost/db",
	})
	require.NoError(t, err)

	require.NoError(t, te.services.DeleteService(svc.ID))

	err = te.store.View(func(tx *storage.Tx) error {
		allocs, err := tx.AllocationsByService(svc.ID)
		require.NoError(t, err)
		assert.Empty(t, allocs)

		cfgs, err := tx.EnvConfigsByService(svc.ID)
		require.NoError(t, err)
		assert.Empty(t, cfgs)
		return nil
	})
	require.NoError(t, err)

	avail, err := te.ports.CheckAvailability("team-a", 8080, ports.DefaultEnvironment)
	require.NoError(t, err)
	assert.True(t, avail.Available, "released port is reusable")
}

func TestCloneCopiesConfigAndAllocatesFreshPorts(t *testing.T) {
	te := newTestEngines(t)
	_, err := te.ports.SeedDefaultRanges("team-a", ports.DefaultEnvironment, "tester")
	require.NoError(t, err)

	src, err := te.services.CreateService("team-a", CreateServiceRequest{
		Name:      "User Service",
		Type:      types.ServiceTypeSpringBoot,
		TechStack: "java-21",
	})
	require.NoError(t, err)
	srcAlloc, err := te.ports.AutoAllocate(src.ID, ports.DefaultEnvironment, types.PortTypeHTTPAPI, "tester")
	require.NoError(t, err)
	_, err = te.env.Upsert(src.ID, envconfig.UpsertRequest{
		Environment: ports.DefaultEnvironment,
		Key:         "cache.ttl-seconds",
		Value:       "300",
		Source:      types.ConfigSourceManual,
	})
	require.NoError(t, err)

	clone, err := te.services.Clone(src.ID, CloneRequest{
		Name:              "User Service Copy",
		AutoAllocatePorts: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "user-service-copy", clone.Slug)
	assert.Equal(t, src.Type, clone.Type)
	assert.Equal(t, "java-21", clone.TechStack)
	assert.Equal(t, types.HealthUnknown, clone.LastHealthStatus)

	cloneAllocs, err := te.ports.ListByService(clone.ID)
	require.NoError(t, err)
	require.Len(t, cloneAllocs, 1)
	assert.Equal(t, types.PortTypeHTTPAPI, cloneAllocs[0].Type)
	assert.NotEqual(t, srcAlloc.Port, cloneAllocs[0].Port, "clone gets a fresh port")

	cfgs, err := te.env.ListByService(clone.ID, "")
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, types.ConfigSourceInherited, cfgs[0].Source)
	assert.Equal(t, "300", cfgs[0].Value)
}

func TestIdentityBundlesEverything(t *testing.T) {
	te := newTestEngines(t)
	svc, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "api", Type: types.ServiceTypeGoAPI})
	require.NoError(t, err)
	db, err := te.services.CreateService("team-a", CreateServiceRequest{Name: "postgres", Type: types.ServiceTypeDatabase})
	require.NoError(t, err)

	_, err = te.graph.CreateDependency(graph.CreateDependencyRequest{
		SourceID: svc.ID, TargetID: db.ID, Type: types.DependencyDatabaseShared,
	})
	require.NoError(t, err)
	_, err = te.ports.ManualAllocate(ports.ManualAllocateRequest{
		ServiceID: svc.ID, Environment: ports.DefaultEnvironment, Type: types.PortTypeHTTPAPI, Port: 8080,
	})
	require.NoError(t, err)
	sol, err := te.solutions.CreateSolution("team-a", solutions.CreateSolutionRequest{Name: "Platform"})
	require.NoError(t, err)
	_, err = te.solutions.AddMember(sol.ID, solutions.AddMemberRequest{ServiceID: svc.ID})
	require.NoError(t, err)

	ident, err := te.services.Identity(svc.ID)
	require.NoError(t, err)
	assert.Equal(t, svc.ID, ident.Service.ID)
	require.Len(t, ident.Ports, 1)
	assert.Equal(t, 8080, ident.Ports[0].Port)
	require.Len(t, ident.Upstream, 1)
	assert.Equal(t, "postgres", ident.Upstream[0].Slug)
	assert.Empty(t, ident.Downstream)
	assert.Equal(t, []string{sol.ID}, ident.SolutionIDs)
}

func TestGetServiceNotFound(t *testing.T) {
	te := newTestEngines(t)
	_, err := te.services.GetService("ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
