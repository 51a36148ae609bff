package hostconfig

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"GO_ENV", "APEX_ENV", "ENVIRONMENT",
		"JDWP_HOST", "JDWP_PORT",
		"INITIAL_SCRIPT_RESOLVE_ATTEMPTS",
		"DEBUGHOST_HTTP_ADDR", "DEBUGHOST_METRICS_ADDR",
	}
	for _, v := range vars {
		old, had := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if had {
				os.Setenv(v, old)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, DefaultTargetHost, cfg.TargetHost)
	assert.Equal(t, DefaultTargetPort, cfg.TargetPort)
	assert.Equal(t, DefaultInitialScriptResolveAttempts, cfg.InitialScriptResolveAttempts)
	assert.Equal(t, DefaultQuiescenceWindowMS, cfg.QuiescenceWindowMS)
	assert.Equal(t, ":8090", cfg.HTTPAddr)
	assert.Equal(t, ":8091", cfg.MetricsAddr)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("JDWP_HOST", "10.0.0.5")
	os.Setenv("JDWP_PORT", "9999")
	os.Setenv("GO_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.TargetHost)
	assert.Equal(t, 9999, cfg.TargetPort)
	assert.True(t, cfg.IsProduction())
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("JDWP_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadInvalidResolveAttempts(t *testing.T) {
	clearEnv(t)
	os.Setenv("INITIAL_SCRIPT_RESOLVE_ATTEMPTS", "nope")

	_, err := Load()
	require.Error(t, err)
}
