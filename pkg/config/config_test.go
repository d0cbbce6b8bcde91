package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeops-dev/registry/pkg/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Limits.MaxServicesPerTeam)
	assert.Equal(t, 50, cfg.Limits.MaxDependenciesPerService)
	assert.Equal(t, 5*time.Second, cfg.Health.ProbeTimeout)
	assert.Len(t, cfg.Ports.DefaultRanges, 12, "one default range per port type")
}

func TestDefaultRangeBoundsCoverAllPortTypes(t *testing.T) {
	bounds := DefaultRangeBounds()
	for _, pt := range types.AllPortTypes {
		b, ok := bounds[pt]
		require.True(t, ok, "missing default range for %s", pt)
		assert.Less(t, b.Start, b.End, "range for %s", pt)
	}
	assert.Equal(t, Bounds{Start: 8080, End: 8199}, bounds[types.PortTypeHTTPAPI])
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codeops.yaml")
	content := `
server:
  addr: ":9999"
storage:
  path: /tmp/test-registry.db
limits:
  maxServicesPerTeam: 7
log:
  level: debug
  json: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "/tmp/test-registry.db", cfg.Storage.Path)
	assert.Equal(t, 7, cfg.Limits.MaxServicesPerTeam)
	// Untouched fields keep their defaults.
	assert.Equal(t, 25, cfg.Limits.MaxSolutionsPerTeam)
	assert.True(t, cfg.Log.JSON)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CODEOPS_ADDR", ":7070")
	t.Setenv("MAX_SERVICES_PER_TEAM", "3")
	t.Setenv("CODEOPS_HEALTH_PROBE_TIMEOUT", "2s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Limits.MaxServicesPerTeam)
	assert.Equal(t, 2*time.Second, cfg.Health.ProbeTimeout)
}

func TestPrefixedEnvWinsOverBare(t *testing.T) {
	t.Setenv("CODEOPS_MAX_SOLUTIONS_PER_TEAM", "9")
	t.Setenv("MAX_SOLUTIONS_PER_TEAM", "4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Limits.MaxSolutionsPerTeam)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
		{"zero cap", func(c *Config) { c.Limits.MaxServicesPerTeam = 0 }},
		{"negative probe timeout", func(c *Config) { c.Health.ProbeTimeout = -time.Second }},
		{"inverted range", func(c *Config) {
			c.Ports.DefaultRanges[types.PortTypeHTTPAPI] = Bounds{Start: 9000, End: 8000}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
