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
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, 30*time.Second, cfg.FHIRTimeout)
	assert.Equal(t, 9600*time.Second, cfg.CacheTTL)
	assert.Equal(t, time.Second, cfg.FetchPacing)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.True(t, cfg.EnableBusinessMetrics)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.BackendAuthEnabled())
	assert.False(t, cfg.DeliveryEnabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("CACHE_COALESCE", "true")
	t.Setenv("TNT_ENVIRONMENT", "production")
	t.Setenv("TNT_RECEIVE_ENDPOINT", "https://tnt.example/receive")
	t.Setenv("EPIC_CLIENT_ID", "client")
	t.Setenv("EPIC_PRIVATE_KEY_PATH", "/keys/epic.pem")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, CacheRedis, cfg.CacheBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.True(t, cfg.CacheCoalesce)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.DeliveryEnabled())
	assert.True(t, cfg.BackendAuthEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"CACHE_BACKEND": "etcd"}},
		{name: "couchbase without url", env: map[string]string{"CACHE_BACKEND": "couchbase"}},
		{name: "zero timeout", env: map[string]string{"FHIR_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EPIC_FHIR_GROUP_ID=group-from-dotenv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// godotenv does not override variables that are already set
	t.Setenv("EPIC_FHIR_GROUP_ID", "")
	require.NoError(t, os.Unsetenv("EPIC_FHIR_GROUP_ID"))

	LoadDotEnv()
	t.Cleanup(func() { _ = os.Unsetenv("EPIC_FHIR_GROUP_ID") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "group-from-dotenv", cfg.EpicFHIRGroupID)
}
