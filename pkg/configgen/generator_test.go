package configgen

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

func newTestGenerator(t *testing.T) (*Generator, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewGenerator(store, nil), store
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

func putAllocation(t *testing.T, store *storage.Store, id, serviceID, teamID string, portType types.PortType, port int, env string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutAllocation(&types.PortAllocation{
			ID:          id,
			TeamID:      teamID,
			ServiceID:   serviceID,
			Environment: env,
			Type:        portType,
			Port:        port,
			Protocol:    "TCP",
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}))
}

func putEnvRow(t *testing.T, store *storage.Store, id, serviceID, teamID, env, key, value string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutEnvConfig(&types.EnvConfig{
			ID:          id,
			TeamID:      teamID,
			ServiceID:   serviceID,
			Environment: env,
			Key:         key,
			Value:       value,
			Source:      types.ConfigSourceManual,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}))
}

func TestGenerateComposeVersioning(t *testing.T) {
	gen, store := newTestGenerator(t)
	putService(t, store, "svc", "team-a", "user-service")
	putAllocation(t, store, "alloc-1", "svc", "team-a", types.PortTypeHTTPAPI, 8080, "local")

	tpl, err := gen.Generate("svc", types.TemplateDockerCompose, "local")
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.Version)
	assert.True(t, tpl.AutoGenerated)
	assert.Equal(t, "registry-data", tpl.GeneratedFrom)

	again, err := gen.Generate("svc", types.TemplateDockerCompose, "local")
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, again.ID, "same (service, type, environment) row")
	assert.Equal(t, 2, again.Version, "regeneration bumps the version")
	assert.Equal(t, tpl.Content, again.Content, "rendering is deterministic")

	// A different environment is its own row at version 1.
	staging, err := gen.Generate("svc", types.TemplateDockerCompose, "staging")
	require.NoError(t, err)
	assert.NotEqual(t, tpl.ID, staging.ID)
	assert.Equal(t, 1, staging.Version)
}

func TestGenerateComposeContent(t *testing.T) {
	gen, store := newTestGenerator(t)
	svc := putService(t, store, "svc", "team-a", "user-service")
	svc.HealthCheckURL = "http://localhost:8080/actuator/health"
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutService(svc)
	}))
	putService(t, store, "db", "team-a", "postgres-main")
	putAllocation(t, store, "alloc-1", "svc", "team-a", types.PortTypeHTTPAPI, 8080, "local")
	putEnvRow(t, store, "env-1", "svc", "team-a", "local", "spring.datasource.url", "jdbc:postgresql://db:5432/app")

	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		if err := tx.PutDependency(&types.ServiceDependency{
			ID: "dep-1", TeamID: "team-a", SourceID: "svc", TargetID: "db",
			Type: types.DependencyDatabaseShared, IsRequired: true,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		return tx.PutResource(&types.InfraResource{
			ID: "res-1", TeamID: "team-a", ServiceID: "svc",
			Type: types.ResourceDockerVolume, Name: "user-data",
			CreatedAt: now, UpdatedAt: now,
		})
	}))

	tpl, err := gen.Generate("svc", types.TemplateDockerCompose, "local")
	require.NoError(t, err)

	var doc struct {
		Services map[string]struct {
			Image     string            `yaml:"image"`
			Ports     []string          `yaml:"ports"`
			Env       map[string]string `yaml:"environment"`
			DependsOn []string          `yaml:"depends_on"`
			Volumes   []string          `yaml:"volumes"`
		} `yaml:"services"`
		Networks map[string]any      `yaml:"networks"`
		Volumes  map[string]struct{} `yaml:"volumes"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(tpl.Content), &doc))

	block, ok := doc.Services["user-service"]
	require.True(t, ok)
	assert.Equal(t, "user-service:latest", block.Image)
	assert.Equal(t, []string{"8080:8080"}, block.Ports)
	assert.Equal(t, "jdbc:postgresql://db:5432/app", block.Env["spring.datasource.url"])
	assert.Equal(t, []string{"postgres-main"}, block.DependsOn)
	assert.Equal(t, []string{"user-data:/var/lib/user-data"}, block.Volumes)
	assert.Contains(t, doc.Networks, "codeops-network")
	assert.Contains(t, doc.Volumes, "user-data")
	assert.Contains(t, tpl.Content, "healthcheck")
}

func TestGenerateEnvFile(t *testing.T) {
	gen, store := newTestGenerator(t)
	putService(t, store, "svc", "team-a", "user-service")
	putAllocation(t, store, "alloc-1", "svc", "team-a", types.PortTypeHTTPAPI, 8080, "local")
	putAllocation(t, store, "alloc-2", "svc", "team-a", types.PortTypeDebug, 5005, "local")
	putAllocation(t, store, "alloc-3", "svc", "team-a", types.PortTypeHTTPAPI, 8090, "staging")
	putEnvRow(t, store, "env-1", "svc", "team-a", "local", "cache.ttl-seconds", "300")

	tpl, err := gen.Generate("svc", types.TemplateEnvFile, "local")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(tpl.Content), "\n")
	require.Len(t, lines, 3, "only the requested environment renders")
	assert.Equal(t, "CACHE_TTL_SECONDS=300", lines[0])
	assert.Equal(t, "PORT_DEBUG=5005", lines[1])
	assert.Equal(t, "PORT_HTTP_API=8080", lines[2])
}

func TestGenerateRejectsUnknownType(t *testing.T) {
	gen, store := newTestGenerator(t)
	putService(t, store, "svc", "team-a", "api")

	_, err := gen.Generate("svc", types.TemplateType("PDF"), "local")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = gen.Generate("ghost", types.TemplateDockerCompose, "local")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGenerateAll(t *testing.T) {
	gen, store := newTestGenerator(t)
	putService(t, store, "svc", "team-a", "api")

	generated, err := gen.GenerateAll("svc", "local")
	require.NoError(t, err)
	require.Len(t, generated, 3)
	assert.Equal(t, types.TemplateDockerCompose, generated[0].Type)
	assert.Equal(t, types.TemplateApplicationYML, generated[1].Type)
	assert.Equal(t, types.TemplateClaudeCodeHeader, generated[2].Type)

	_, err = gen.GenerateAll("ghost", "local")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSolutionCompose(t *testing.T) {
	gen, store := newTestGenerator(t)
	putService(t, store, "api", "team-a", "api")
	putService(t, store, "db", "team-a", "postgres")
	putAllocation(t, store, "alloc-1", "api", "team-a", types.PortTypeHTTPAPI, 8080, "local")
	putAllocation(t, store, "alloc-2", "db", "team-a", types.PortTypeDatabase, 5432, "local")

	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		if err := tx.PutDependency(&types.ServiceDependency{
			ID: "dep-1", TeamID: "team-a", SourceID: "api", TargetID: "db",
			Type: types.DependencyDatabaseShared, IsRequired: true,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		if err := tx.PutSolution(&types.Solution{
			ID: "sol", TeamID: "team-a", Slug: "platform", Name: "Platform",
			Category: types.SolutionCategoryPlatform, Status: types.SolutionStatusActive,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		for i, id := range []string{"api", "db"} {
			if err := tx.PutMember(&types.SolutionMember{
				ID: "m-" + id, SolutionID: "sol", ServiceID: id,
				Role: types.MemberRoleCore, DisplayOrder: i,
				CreatedAt: now, UpdatedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	tpl, err := gen.SolutionCompose("sol", "local")
	require.NoError(t, err)
	assert.Equal(t, "solution:sol", tpl.GeneratedFrom)
	assert.Equal(t, "db", tpl.ServiceID, "keyed on the first service in startup order")

	var doc struct {
		Services map[string]yaml.Node `yaml:"services"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(tpl.Content), &doc))
	assert.Len(t, doc.Services, 2)
	assert.Contains(t, doc.Services, "api")
	assert.Contains(t, doc.Services, "postgres")
	assert.Less(t, strings.Index(tpl.Content, "postgres:"), strings.Index(tpl.Content, "api:"),
		"dependency targets render first")

	again, err := gen.SolutionCompose("sol", "local")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Version)
}

func TestSolutionComposeEmpty(t *testing.T) {
	gen, store := newTestGenerator(t)
	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutSolution(&types.Solution{
			ID: "sol", TeamID: "team-a", Slug: "empty", Name: "Empty",
			Category: types.SolutionCategoryOther, Status: types.SolutionStatusActive,
			CreatedAt: now, UpdatedAt: now,
		})
	}))

	_, err := gen.SolutionCompose("sol", "local")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solution empty has no members")
}

func TestTemplateLookupAndDelete(t *testing.T) {
	gen, store := newTestGenerator(t)
	putService(t, store, "svc", "team-a", "api")

	created, err := gen.Generate("svc", types.TemplateEnvFile, "local")
	require.NoError(t, err)

	got, err := gen.GetTemplate("svc", types.TemplateEnvFile, "local")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = gen.GetTemplate("svc", types.TemplateEnvFile, "staging")
	assert.True(t, apperrors.IsNotFound(err))

	byID, err := gen.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Content, byID.Content)

	list, err := gen.ListTemplates("svc")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, gen.DeleteTemplate(created.ID))
	assert.True(t, apperrors.IsNotFound(gen.DeleteTemplate(created.ID)))
}
