// Package hostconfig loads the debug host's environment-derived configuration.
package hostconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// EnvDevelopment is the default environment when none is configured.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DefaultTargetHost/DefaultTargetPort match spec's documented default
	// JDWP attach address for the Nashorn target.
	DefaultTargetHost = "localhost"
	DefaultTargetPort = 7777

	// DefaultInitialScriptResolveAttempts bounds retries recovering a
	// script's source from the target's still-settling reflective fields.
	DefaultInitialScriptResolveAttempts = 5
	// DefaultSourceResolveRetryIntervalMS is the spacing between those retries.
	DefaultSourceResolveRetryIntervalMS = 50
	// DefaultQuiescenceWindowMS is how long the event pump waits for
	// class-prepare traffic to go quiet before running full initialization.
	DefaultQuiescenceWindowMS = 200
)

// Config holds the debug host's runtime configuration.
type Config struct {
	Environment string

	TargetHost string
	TargetPort int

	InitialScriptResolveAttempts int
	SourceResolveRetryIntervalMS int
	QuiescenceWindowMS           int

	HTTPAddr    string
	MetricsAddr string
}

// Load reads configuration from the environment, applying the same
// per-field os.Getenv collection style used across the rest of the backend.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:                   getEnvironment(),
		TargetHost:                    envOrDefault("JDWP_HOST", DefaultTargetHost),
		TargetPort:                    DefaultTargetPort,
		InitialScriptResolveAttempts:  DefaultInitialScriptResolveAttempts,
		SourceResolveRetryIntervalMS:  DefaultSourceResolveRetryIntervalMS,
		QuiescenceWindowMS:            DefaultQuiescenceWindowMS,
		HTTPAddr:                      envOrDefault("DEBUGHOST_HTTP_ADDR", ":8090"),
		MetricsAddr:                   envOrDefault("DEBUGHOST_METRICS_ADDR", ":8091"),
	}

	if v := os.Getenv("JDWP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("JDWP_PORT: invalid port %q: %w", v, err)
		}
		cfg.TargetPort = port
	}

	if v := os.Getenv("INITIAL_SCRIPT_RESOLVE_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("INITIAL_SCRIPT_RESOLVE_ATTEMPTS: %w", err)
		}
		cfg.InitialScriptResolveAttempts = n
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvironment mirrors internal/config's multi-variable environment probe.
func getEnvironment() string {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = os.Getenv("APEX_ENV")
	}
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = EnvDevelopment
	}
	return strings.ToLower(env)
}

// IsProduction reports whether the host is configured for production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction || c.Environment == "prod"
}
