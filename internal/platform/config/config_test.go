package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "jwt", cfg.AuthMode)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, time.Minute, cfg.PreviewCacheTTL)
	assert.Equal(t, 30, cfg.InviteRatePerMinute)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_BASE_URL", "https://crews.example.com")
	t.Setenv("PREVIEW_CACHE_TTL", "30s")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://crews.example.com", cfg.PublicBaseURL)
	assert.Equal(t, 30*time.Second, cfg.PreviewCacheTTL)
	assert.Equal(t, "redis", cfg.CacheBackend)
}

func TestLoad_ConfigFileWithEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7000\"\ntenant_id: from-file\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TENANT_ID", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "from-env", cfg.TenantID)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CONFIG_FILE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadJWTConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_ISSUER", "https://issuer.test")
	t.Setenv("JWT_AUDIENCE", "crew-planner")
	t.Setenv("JWT_JWKS_URL", "https://issuer.test/.well-known/jwks.json")
	t.Setenv("JWT_CLOCK_SKEW", "5s")

	cfg, err := LoadJWTConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "crew-planner", cfg.Audience)
	assert.Equal(t, 5*time.Second, cfg.ClockSkew)
	assert.Equal(t, 5*time.Minute, cfg.JWKSRefreshInterval)
}

func TestLoadJWTConfigFromEnv_MissingRequired(t *testing.T) {
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_AUDIENCE", "")
	t.Setenv("JWT_JWKS_URL", "")

	_, err := LoadJWTConfigFromEnv()
	require.Error(t, err)
}
