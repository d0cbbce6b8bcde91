// Package config loads registry configuration from defaults, an optional
// YAML file, and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeops-dev/registry/pkg/types"
)

// Config is the full runtime configuration of the registry.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Limits  LimitsConfig  `yaml:"limits"`
	Health  HealthConfig  `yaml:"health"`
	Ports   PortsConfig   `yaml:"ports"`
	Log     LogConfig     `yaml:"log"`
	Seed    SeedConfig    `yaml:"seed"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig locates the bbolt data file.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig points at the static token file consumed by the bundled
// verifier. Deployments with an external verifier leave it empty.
type AuthConfig struct {
	TokenFile string `yaml:"tokenFile"`
}

// LimitsConfig holds the per-team caps.
type LimitsConfig struct {
	MaxServicesPerTeam            int `yaml:"maxServicesPerTeam"`
	MaxSolutionsPerTeam           int `yaml:"maxSolutionsPerTeam"`
	MaxWorkstationProfilesPerTeam int `yaml:"maxWorkstationProfilesPerTeam"`
	MaxDependenciesPerService     int `yaml:"maxDependenciesPerService"`
}

// HealthConfig bounds outbound health probes.
type HealthConfig struct {
	ProbeTimeout     time.Duration `yaml:"probeTimeout"`
	ProbeConcurrency int           `yaml:"probeConcurrency"`
}

// Bounds is an inclusive port interval.
type Bounds struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// PortsConfig carries the default auto-allocation ranges seeded per team.
type PortsConfig struct {
	DefaultRanges map[types.PortType]Bounds `yaml:"defaultRanges"`
}

// LogConfig controls log level and format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// SeedConfig identifies the team the bootstrap fixture belongs to.
type SeedConfig struct {
	TeamID string `yaml:"teamId"`
	OnBoot bool   `yaml:"onBoot"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8090",
			CORSOrigins:     []string{"*"},
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Path: "codeops.db",
		},
		Limits: LimitsConfig{
			MaxServicesPerTeam:            100,
			MaxSolutionsPerTeam:           25,
			MaxWorkstationProfilesPerTeam: 25,
			MaxDependenciesPerService:     50,
		},
		Health: HealthConfig{
			ProbeTimeout:     5 * time.Second,
			ProbeConcurrency: 8,
		},
		Ports: PortsConfig{
			DefaultRanges: DefaultRangeBounds(),
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
		Seed: SeedConfig{
			TeamID: "team-codeops",
		},
	}
}

// DefaultRangeBounds is the twelve-range preset applied by
// seed-default-ranges when a team has no ranges yet.
func DefaultRangeBounds() map[types.PortType]Bounds {
	return map[types.PortType]Bounds{
		types.PortTypeHTTPAPI:       {Start: 8080, End: 8199},
		types.PortTypeDatabase:      {Start: 5432, End: 5499},
		types.PortTypeRedis:         {Start: 6379, End: 6399},
		types.PortTypeKafka:         {Start: 9092, End: 9099},
		types.PortTypeKafkaInternal: {Start: 29092, End: 29099},
		types.PortTypeZookeeper:     {Start: 2181, End: 2199},
		types.PortTypeGRPC:          {Start: 50051, End: 50151},
		types.PortTypeWebsocket:     {Start: 8300, End: 8399},
		types.PortTypeDebug:         {Start: 5005, End: 5099},
		types.PortTypeActuator:      {Start: 8200, End: 8299},
		types.PortTypeFrontendDev:   {Start: 3000, End: 3099},
		types.PortTypeCustom:        {Start: 10000, End: 10999},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// given, then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays recognized environment variables. Both the CODEOPS_
// prefixed form and the bare option name are accepted.
func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "ADDR")
	setString(&c.Storage.Path, "DATA_PATH")
	setString(&c.Auth.TokenFile, "TOKEN_FILE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setBool(&c.Log.JSON, "LOG_JSON")
	setString(&c.Seed.TeamID, "SEED_TEAM_ID")
	setBool(&c.Seed.OnBoot, "SEED_ON_BOOT")

	setInt(&c.Limits.MaxServicesPerTeam, "MAX_SERVICES_PER_TEAM")
	setInt(&c.Limits.MaxSolutionsPerTeam, "MAX_SOLUTIONS_PER_TEAM")
	setInt(&c.Limits.MaxWorkstationProfilesPerTeam, "MAX_WORKSTATION_PROFILES_PER_TEAM")
	setInt(&c.Limits.MaxDependenciesPerService, "MAX_DEPENDENCIES_PER_SERVICE")

	setDuration(&c.Health.ProbeTimeout, "HEALTH_PROBE_TIMEOUT")
	setInt(&c.Health.ProbeConcurrency, "HEALTH_PROBE_CONCURRENCY")

	if v, ok := lookup("CORS_ORIGINS"); ok {
		parts := strings.Split(v, ",")
		origins := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		c.Server.CORSOrigins = origins
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path must not be empty")
	}
	if c.Limits.MaxServicesPerTeam < 1 ||
		c.Limits.MaxSolutionsPerTeam < 1 ||
		c.Limits.MaxWorkstationProfilesPerTeam < 1 ||
		c.Limits.MaxDependenciesPerService < 1 {
		return fmt.Errorf("per-team caps must be positive")
	}
	if c.Health.ProbeTimeout <= 0 {
		return fmt.Errorf("health probe timeout must be positive")
	}
	if c.Health.ProbeConcurrency < 1 {
		return fmt.Errorf("health probe concurrency must be positive")
	}
	for pt, b := range c.Ports.DefaultRanges {
		if _, err := types.ParsePortType(string(pt)); err != nil {
			return fmt.Errorf("default range: %w", err)
		}
		if b.Start < 1 || b.End > 65535 || b.Start >= b.End {
			return fmt.Errorf("default range for %s: invalid bounds %d-%d", pt, b.Start, b.End)
		}
	}
	return nil
}

func lookup(name string) (string, bool) {
	if v := os.Getenv("CODEOPS_" + name); v != "" {
		return v, true
	}
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	return "", false
}

func setString(dst *string, name string) {
	if v, ok := lookup(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	if v, ok := lookup(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, name string) {
	if v, ok := lookup(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, name string) {
	if v, ok := lookup(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
