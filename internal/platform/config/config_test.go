package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.RateLimit.Backend)
	assert.Equal(t, AlgorithmFixedWindow, cfg.RateLimit.Algorithm)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.SweepInterval)
	assert.Equal(t, BackendMemory, cfg.Audit.Backend)
	assert.Equal(t, "admissions.audit.alerts", cfg.Audit.AlertTopic)
}

func TestFromEnv_ProfileOverrides(t *testing.T) {
	t.Setenv("RATELIMIT_AUTH_MAX", "3")
	t.Setenv("RATELIMIT_AUTH_WINDOW", "1m")
	t.Setenv("RATELIMIT_UPLOAD_MAX", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, LimitOverride{MaxRequests: 3, Window: time.Minute}, cfg.RateLimit.Overrides["auth"])
	_, ok := cfg.RateLimit.Overrides["upload"]
	assert.False(t, ok, "unparseable override is ignored")
}

func TestFromEnv_RejectsInvalidBackends(t *testing.T) {
	t.Run("redis without url", func(t *testing.T) {
		t.Setenv("RATELIMIT_BACKEND", "redis")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("unknown audit backend", func(t *testing.T) {
		t.Setenv("AUDIT_BACKEND", "firestore")
		_, err := FromEnv()
		require.ErrorContains(t, err, "AUDIT_BACKEND")
	})

	t.Run("postgres without url", func(t *testing.T) {
		t.Setenv("AUDIT_BACKEND", "postgres")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("token bucket on redis", func(t *testing.T) {
		t.Setenv("RATELIMIT_BACKEND", "redis")
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("RATELIMIT_ALGORITHM", "token_bucket")
		_, err := FromEnv()
		require.Error(t, err)
	})
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("seeds unset variables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("ADMISSIONS_TEST_DOTENV=from-file\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("ADMISSIONS_TEST_DOTENV") })

		require.NoError(t, LoadDotEnv(path))
		assert.Equal(t, "from-file", os.Getenv("ADMISSIONS_TEST_DOTENV"))
	})
}
