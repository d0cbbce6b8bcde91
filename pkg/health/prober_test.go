package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeops-dev/registry/pkg/apperrors"
	"github.com/codeops-dev/registry/pkg/storage"
	"github.com/codeops-dev/registry/pkg/types"
)

func newTestProber(t *testing.T) (*Prober, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewProber(store, nil, 2*time.Second, 4), store
}

func putService(t *testing.T, store *storage.Store, id, teamID, slug, checkURL string) *types.Service {
	t.Helper()
	now := time.Now().UTC()
	svc := &types.Service{
		ID:               id,
		TeamID:           teamID,
		Name:             slug,
		Slug:             slug,
		Type:             types.ServiceTypeGoAPI,
		Status:           types.ServiceStatusActive,
		HealthCheckURL:   checkURL,
		LastHealthStatus: types.HealthUnknown,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutService(svc)
	}))
	return svc
}

func serveStatus(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckHealthyService(t *testing.T) {
	prober, store := newTestProber(t)
	srv := serveStatus(t, http.StatusOK)
	putService(t, store, "svc", "team-a", "api", srv.URL+"/healthz")

	result, err := prober.Check(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, types.HealthUp, result.Status)
	assert.Empty(t, result.Message)

	// The outcome is persisted onto the record.
	cached, err := prober.Cached("svc")
	require.NoError(t, err)
	assert.Equal(t, types.HealthUp, cached.Status)
	assert.False(t, cached.CheckedAt.IsZero())
}

func TestCheckDegradedService(t *testing.T) {
	prober, store := newTestProber(t)
	srv := serveStatus(t, http.StatusInternalServerError)
	putService(t, store, "svc", "team-a", "api", srv.URL)

	result, err := prober.Check(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, types.HealthDegraded, result.Status)
	assert.Equal(t, "HTTP 500", result.Message)
}

func TestCheckUnreachableService(t *testing.T) {
	prober, store := newTestProber(t)
	srv := serveStatus(t, http.StatusOK)
	url := srv.URL
	srv.Close()
	putService(t, store, "svc", "team-a", "api", url)

	result, err := prober.Check(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, types.HealthDown, result.Status)
	assert.NotEmpty(t, result.Message)
}

func TestCheckWithoutURL(t *testing.T) {
	prober, store := newTestProber(t)
	putService(t, store, "svc", "team-a", "api", "")

	result, err := prober.Check(context.Background(), "svc")
	require.NoError(t, err)
	assert.Equal(t, types.HealthUnknown, result.Status)
	assert.Equal(t, NoURLMessage, result.Message)

	// Nothing is persisted for URL-less services.
	cached, err := prober.Cached("svc")
	require.NoError(t, err)
	assert.True(t, cached.CheckedAt.IsZero())

	_, err = prober.Check(context.Background(), "ghost")
	assert.True(t, apperrors.IsNotFound(err))
}

// stalledServer blocks every request until the caller gives up.
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCancelledWritesNothing(t *testing.T) {
	prober, store := newTestProber(t)
	srv := stalledServer(t)
	putService(t, store, "svc", "team-a", "api", srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := prober.Check(ctx, "svc")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// An aborted probe records nothing on the service.
	cached, err := prober.Cached("svc")
	require.NoError(t, err)
	assert.Equal(t, types.HealthUnknown, cached.Status)
	assert.True(t, cached.CheckedAt.IsZero())
}

func TestCheckTeamCancelledWritesNothing(t *testing.T) {
	prober, store := newTestProber(t)
	srv := stalledServer(t)
	putService(t, store, "a", "team-a", "api", srv.URL)
	putService(t, store, "b", "team-a", "billing", srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rollup, err := prober.CheckTeam(ctx, "team-a")
	require.Error(t, err)
	assert.Nil(t, rollup)

	for _, id := range []string{"a", "b"} {
		cached, err := prober.Cached(id)
		require.NoError(t, err)
		assert.Equal(t, types.HealthUnknown, cached.Status)
		assert.True(t, cached.CheckedAt.IsZero())
	}
}

func TestCheckTeamRollup(t *testing.T) {
	prober, store := newTestProber(t)
	up := serveStatus(t, http.StatusOK)
	bad := serveStatus(t, http.StatusServiceUnavailable)

	putService(t, store, "a", "team-a", "api", up.URL)
	putService(t, store, "b", "team-a", "billing", bad.URL)
	putService(t, store, "c", "team-a", "cron", "")
	retired := putService(t, store, "d", "team-a", "dead", up.URL)
	retired.Status = types.ServiceStatusDeprecated
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		return tx.PutService(retired)
	}))

	rollup, err := prober.CheckTeam(context.Background(), "team-a")
	require.NoError(t, err)
	assert.Equal(t, types.HealthDegraded, rollup.Status, "degraded wins over up and unknown")
	require.Len(t, rollup.Results, 3, "inactive services are skipped")
	assert.Equal(t, "api", rollup.Results[0].Slug, "results sort by slug")
	assert.Equal(t, types.HealthUp, rollup.Results[0].Status)
	assert.Equal(t, types.HealthDegraded, rollup.Results[1].Status)
	assert.Equal(t, types.HealthUnknown, rollup.Results[2].Status)
}

func TestCheckTeamDownDominates(t *testing.T) {
	prober, store := newTestProber(t)
	up := serveStatus(t, http.StatusOK)
	down := serveStatus(t, http.StatusOK)
	downURL := down.URL
	down.Close()

	putService(t, store, "a", "team-a", "api", up.URL)
	putService(t, store, "b", "team-a", "billing", downURL)

	rollup, err := prober.CheckTeam(context.Background(), "team-a")
	require.NoError(t, err)
	assert.Equal(t, types.HealthDown, rollup.Status)
}

func TestCheckTeamEmpty(t *testing.T) {
	prober, _ := newTestProber(t)

	rollup, err := prober.CheckTeam(context.Background(), "team-empty")
	require.NoError(t, err)
	assert.Equal(t, types.HealthUnknown, rollup.Status)
	assert.Empty(t, rollup.Results)
}

func TestCheckSolution(t *testing.T) {
	prober, store := newTestProber(t)
	up := serveStatus(t, http.StatusOK)
	putService(t, store, "a", "team-a", "api", up.URL)
	putService(t, store, "b", "team-a", "billing", up.URL)
	putService(t, store, "outside", "team-a", "outside", up.URL)

	now := time.Now().UTC()
	require.NoError(t, store.Update(func(tx *storage.Tx) error {
		if err := tx.PutSolution(&types.Solution{
			ID: "sol", TeamID: "team-a", Slug: "platform", Name: "Platform",
			Category: types.SolutionCategoryPlatform, Status: types.SolutionStatusActive,
			CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		for i, id := range []string{"a", "b"} {
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

	rollup, err := prober.CheckSolution(context.Background(), "sol")
	require.NoError(t, err)
	assert.Equal(t, types.HealthUp, rollup.Status)
	assert.Len(t, rollup.Results, 2, "only solution members are probed")

	_, err = prober.CheckSolution(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUnhealthyAndNeverChecked(t *testing.T) {
	prober, store := newTestProber(t)
	bad := serveStatus(t, http.StatusBadGateway)

	putService(t, store, "a", "team-a", "api", bad.URL)
	putService(t, store, "b", "team-a", "billing", "")

	never, err := prober.NeverChecked("team-a")
	require.NoError(t, err)
	assert.Len(t, never, 2)

	_, err = prober.Check(context.Background(), "a")
	require.NoError(t, err)

	unhealthy, err := prober.Unhealthy("team-a")
	require.NoError(t, err)
	require.Len(t, unhealthy, 1)
	assert.Equal(t, "api", unhealthy[0].Slug)

	never, err = prober.NeverChecked("team-a")
	require.NoError(t, err)
	require.Len(t, never, 1)
	assert.Equal(t, "billing", never[0].Slug)
}
