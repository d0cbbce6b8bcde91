package infra

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

func putService(t *testing.T, store *storage.Store, id, teamID, slug string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutService(&types.Service{
			ID:               id,
			TeamID:           teamID,
			Name:             slug,
			Slug:             slug,
			Type:             types.ServiceTypeGoAPI,
			Status:           types.ServiceStatusActive,
			LastHealthStatus: types.HealthUnknown,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}))
}

func TestCreateResource(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc", "team-a", "api")

	res, err := engine.CreateResource("team-a", CreateResourceRequest{
		ServiceID:   "svc",
		Type:        types.ResourceS3Bucket,
		Name:        "user-uploads",
		Environment: "production",
		Region:      "us-east-1",
		Locator:     "s3://user-uploads",
		Config:      map[string]string{"versioning": "enabled"},
		CreatedBy:   "tester",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "team-a", res.TeamID)
	assert.Equal(t, "svc", res.ServiceID)
	assert.Equal(t, "enabled", res.Config["versioning"])

	// A row without an owning service is fine from the start.
	unowned, err := engine.CreateResource("team-a", CreateResourceRequest{
		Type: types.ResourceDockerNetwork,
		Name: "shared-net",
	})
	require.NoError(t, err)
	assert.Empty(t, unowned.ServiceID)
}

func TestCreateResourceValidation(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "other", "team-b", "other")

	_, err := engine.CreateResource("team-a", CreateResourceRequest{Type: types.ResourceS3Bucket})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource name must not be empty")

	_, err = engine.CreateResource("team-a", CreateResourceRequest{
		ServiceID: "other",
		Type:      types.ResourceS3Bucket,
		Name:      "bucket",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service other belongs to a different team")

	_, err = engine.CreateResource("team-a", CreateResourceRequest{
		ServiceID: "ghost",
		Type:      types.ResourceS3Bucket,
		Name:      "bucket",
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateResource(t *testing.T) {
	engine, _ := newTestEngine(t)
	res, err := engine.CreateResource("team-a", CreateResourceRequest{
		Type:   types.ResourceDatabaseInstance,
		Name:   "main-db",
		Region: "us-east-1",
	})
	require.NoError(t, err)

	region := "eu-west-1"
	updated, err := engine.UpdateResource(res.ID, UpdateResourceRequest{
		Region: &region,
		Config: map[string]string{"tier": "db.m5.large"},
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", updated.Region)
	assert.Equal(t, "db.m5.large", updated.Config["tier"])
	assert.Equal(t, "main-db", updated.Name, "untouched fields survive")

	empty := ""
	_, err = engine.UpdateResource(res.ID, UpdateResourceRequest{Name: &empty})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestOrphanAndReassign(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc-a", "team-a", "api")
	putService(t, store, "svc-b", "team-a", "billing")
	putService(t, store, "outsider", "team-b", "outsider")

	res, err := engine.CreateResource("team-a", CreateResourceRequest{
		ServiceID: "svc-a",
		Type:      types.ResourceDockerVolume,
		Name:      "api-data",
	})
	require.NoError(t, err)

	orphaned, err := engine.Orphan(res.ID)
	require.NoError(t, err)
	assert.Empty(t, orphaned.ServiceID)

	list, err := engine.FindOrphaned("team-a")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.ID, list[0].ID)

	reassigned, err := engine.Reassign(res.ID, "svc-b")
	require.NoError(t, err)
	assert.Equal(t, "svc-b", reassigned.ServiceID)

	list, err = engine.FindOrphaned("team-a")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = engine.Reassign(res.ID, "outsider")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "belongs to a different team than resource api-data")

	_, err = engine.Reassign(res.ID, "ghost")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListResourcesFilters(t *testing.T) {
	engine, store := newTestEngine(t)
	putService(t, store, "svc", "team-a", "api")

	mk := func(name string, rt types.ResourceType, env, serviceID string) {
		t.Helper()
		_, err := engine.CreateResource("team-a", CreateResourceRequest{
			ServiceID:   serviceID,
			Type:        rt,
			Name:        name,
			Environment: env,
		})
		require.NoError(t, err)
	}
	mk("zeta-bucket", types.ResourceS3Bucket, "production", "svc")
	mk("alpha-volume", types.ResourceDockerVolume, "local", "svc")
	mk("mid-bucket", types.ResourceS3Bucket, "local", "")

	all, err := engine.ListResources("team-a", ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha-volume", all[0].Name, "name-sorted")

	buckets, err := engine.ListResources("team-a", ListFilter{Type: types.ResourceS3Bucket})
	require.NoError(t, err)
	assert.Len(t, buckets, 2)

	local, err := engine.ListResources("team-a", ListFilter{Environment: "local"})
	require.NoError(t, err)
	assert.Len(t, local, 2)

	owned, err := engine.ListResources("team-a", ListFilter{ServiceID: "svc"})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	none, err := engine.ListResources("team-b", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteResource(t *testing.T) {
	engine, _ := newTestEngine(t)
	res, err := engine.CreateResource("team-a", CreateResourceRequest{
		Type: types.ResourceRedisInstance,
		Name: "session-cache",
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteResource(res.ID))
	assert.True(t, apperrors.IsNotFound(engine.DeleteResource(res.ID)))

	_, err = engine.GetResource(res.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
