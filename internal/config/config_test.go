package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RATE_LIMIT_RPM", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://localhost/fraudwatch")
	t.Setenv("RATE_LIMIT_RPM", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost/fraudwatch", cfg.DatabaseURL)
	assert.Equal(t, 30, cfg.RateLimitRPM)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("ENV", "sandbox")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("RATE_LIMIT_RPM", "-5")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MalformedRateLimitFallsBack(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
}
