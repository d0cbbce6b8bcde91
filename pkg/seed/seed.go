// Package seed installs a small demo ecosystem into an empty store:
// one team with services, acyclic dependencies, default port ranges,
// routes, env configs, a solution, and a default workstation profile.
package seed

import (
	"fmt"

	"github.com/codeops-dev/registry/pkg/config"
	"github.com/codeops-dev/registry/pkg/envconfig"
	"github.com/codeops-dev/registry/pkg/graph"
	"github.com/codeops-dev/registry/pkg/log"
	"github.com/codeops-dev/registry/pkg/ports"
	"github.com/codeops-dev/registry/pkg/registry"
	"github.com/codeops-dev/registry/pkg/routes"
	"github.com/codeops-dev/registry/pkg/solutions"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
	"github.com/codeops-dev/registry/pkg/workstations"
)

const seedUser = "seed"

// Run installs the fixture for the configured team. A team that already
// has services is left untouched.
func Run(store *storage.Store, cfg *config.Config) error {
	teamID := cfg.Seed.TeamID
	if teamID == "" {
		return fmt.Errorf("seed team id is not configured")
	}
	logger := log.WithComponent("seed")

	var existing int
	err := store.View(func(tx *storage.Tx) error {
		services, err := tx.ServicesByTeam(teamID)
		if err != nil {
			return err
		}
		existing = len(services)
		return nil
	})
	if err != nil {
		return err
	}
	if existing > 0 {
		logger.Info().Str("team", teamID).Int("services", existing).Msg("seed skipped, team already populated")
		return nil
	}

	portEngine := ports.NewEngine(store, nil, cfg.Ports.DefaultRanges)
	svcEngine := registry.NewEngine(store, nil, portEngine, cfg.Limits)
	graphEngine := graph.NewEngine(store, nil, cfg.Limits.MaxDependenciesPerService)
	routeEngine := routes.NewEngine(store, nil)
	solutionEngine := solutions.NewEngine(store, nil, cfg.Limits)
	profileEngine := workstations.NewEngine(store, nil, cfg.Limits)
	envEngine := envconfig.NewEngine(store)

	if _, err := portEngine.SeedDefaultRanges(teamID, ports.DefaultEnvironment, seedUser); err != nil {
		return fmt.Errorf("seed port ranges: %w", err)
	}

	type fixture struct {
		name      string
		slug      string
		svcType   types.ServiceType
		techStack string
		healthURL string
	}
	fixtures := []fixture{
		{"API Gateway", "api-gateway", types.ServiceTypeAPIGateway, "nginx", "http://localhost:8080/health"},
		{"Web App", "web-app", types.ServiceTypeNextJS, "nextjs", ""},
		{"User Service", "user-service", types.ServiceTypeSpringBoot, "java-21", "http://localhost:8081/actuator/health"},
		{"Billing Service", "billing-service", types.ServiceTypeGoAPI, "go-1.25", "http://localhost:8082/healthz"},
		{"Postgres Main", "postgres-main", types.ServiceTypeDatabase, "postgres-16", ""},
		{"Redis Cache", "redis-cache", types.ServiceTypeCache, "redis-7", ""},
	}

	ids := make(map[string]string, len(fixtures))
	for _, f := range fixtures {
		svc, err := svcEngine.CreateService(teamID, registry.CreateServiceRequest{
			Name:           f.name,
			Slug:           f.slug,
			Type:           f.svcType,
			TechStack:      f.techStack,
			HealthCheckURL: f.healthURL,
			CreatedBy:      seedUser,
		})
		if err != nil {
			return fmt.Errorf("seed service %s: %w", f.slug, err)
		}
		ids[f.slug] = svc.ID

		switch f.svcType {
		case types.ServiceTypeDatabase:
			_, err = portEngine.AutoAllocate(svc.ID, ports.DefaultEnvironment, types.PortTypeDatabase, seedUser)
		case types.ServiceTypeCache:
			_, err = portEngine.AutoAllocate(svc.ID, ports.DefaultEnvironment, types.PortTypeRedis, seedUser)
		case types.ServiceTypeNextJS:
			_, err = portEngine.AutoAllocate(svc.ID, ports.DefaultEnvironment, types.PortTypeFrontendDev, seedUser)
		default:
			_, err = portEngine.AutoAllocate(svc.ID, ports.DefaultEnvironment, types.PortTypeHTTPAPI, seedUser)
		}
		if err != nil {
			return fmt.Errorf("seed port for %s: %w", f.slug, err)
		}
	}

	edges := []struct {
		source, target string
		depType        types.DependencyType
	}{
		{"user-service", "postgres-main", types.DependencyDatabaseShared},
		{"user-service", "redis-cache", types.DependencyRedisCache},
		{"billing-service", "postgres-main", types.DependencyDatabaseShared},
		{"billing-service", "user-service", types.DependencyHTTPREST},
		{"api-gateway", "user-service", types.DependencyHTTPREST},
		{"api-gateway", "billing-service", types.DependencyHTTPREST},
		{"web-app", "api-gateway", types.DependencyHTTPREST},
	}
	for _, e := range edges {
		_, err := graphEngine.CreateDependency(graph.CreateDependencyRequest{
			SourceID:  ids[e.source],
			TargetID:  ids[e.target],
			Type:      e.depType,
			CreatedBy: seedUser,
		})
		if err != nil {
			return fmt.Errorf("seed dependency %s -> %s: %w", e.source, e.target, err)
		}
	}

	routeFixtures := []struct {
		service string
		prefix  string
	}{
		{"user-service", "/api/users"},
		{"billing-service", "/api/billing"},
	}
	for _, rf := range routeFixtures {
		_, err := routeEngine.CreateRoute(routes.CreateRouteRequest{
			ServiceID:   ids[rf.service],
			GatewayID:   ids["api-gateway"],
			PathPrefix:  rf.prefix,
			Methods:     []string{"GET", "POST", "PUT", "DELETE"},
			Environment: ports.DefaultEnvironment,
		})
		if err != nil {
			return fmt.Errorf("seed route %s: %w", rf.prefix, err)
		}
	}

	envRows := map[string]string{
		"spring.datasource.url":      "jdbc:postgresql://localhost:5432/users",
		"spring.datasource.username": "users_app",
		"cache.ttl-seconds":          "300",
	}
	for key, value := range envRows {
		_, err := envEngine.Upsert(ids["user-service"], envconfig.UpsertRequest{
			Environment: ports.DefaultEnvironment,
			Key:         key,
			Value:       value,
			Source:      types.ConfigSourceManual,
		})
		if err != nil {
			return fmt.Errorf("seed env config %s: %w", key, err)
		}
	}

	sol, err := solutionEngine.CreateSolution(teamID, solutions.CreateSolutionRequest{
		Name:        "CodeOps Platform",
		Slug:        "codeops-platform",
		Description: "Demo platform covering the full local stack",
		Category:    types.SolutionCategoryPlatform,
		CreatedBy:   seedUser,
	})
	if err != nil {
		return fmt.Errorf("seed solution: %w", err)
	}
	memberRoles := map[string]types.MemberRole{
		"postgres-main":   types.MemberRoleInfrastructure,
		"redis-cache":     types.MemberRoleInfrastructure,
		"user-service":    types.MemberRoleCore,
		"billing-service": types.MemberRoleCore,
		"api-gateway":     types.MemberRoleSupporting,
		"web-app":         types.MemberRoleCore,
	}
	for _, f := range fixtures {
		_, err := solutionEngine.AddMember(sol.ID, solutions.AddMemberRequest{
			ServiceID: ids[f.slug],
			Role:      memberRoles[f.slug],
		})
		if err != nil {
			return fmt.Errorf("seed member %s: %w", f.slug, err)
		}
	}

	_, err = profileEngine.CreateProfile(teamID, workstations.CreateProfileRequest{
		Name:        "full-stack",
		Description: "Everything needed for local end-to-end development",
		SolutionID:  sol.ID,
		IsDefault:   true,
		CreatedBy:   seedUser,
	})
	if err != nil {
		return fmt.Errorf("seed workstation profile: %w", err)
	}

	logger.Info().Str("team", teamID).Int("services", len(fixtures)).Msg("seed fixture installed")
	return nil
}
