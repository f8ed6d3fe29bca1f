package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearFalconEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"FALCON_APP_NAME", "FALCON_APP_VERSION", "FALCON_DEBUG",
		"FALCON_DATABASE_PATH", "FALCON_WIKI_STORAGE_ROOT",
		"FALCON_CODEX_API_KEY", "FALCON_CODEX_TIMEOUT_SECONDS", "FALCON_CODEX_MAX_CONCURRENT",
		"FALCON_MAX_CONCURRENT_JOBS", "FALCON_JOB_MAX_ATTEMPTS", "FALCON_JOB_POLL_INTERVAL_SECONDS",
		"FALCON_GITHUB_API_TOKEN", "FALCON_MAX_FILE_SIZE", "FALCON_METRICS_ADDR", "FALCON_HTTP_ADDR",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearFalconEnv(t)
	cfg := Load()

	require.Equal(t, "Falcon", cfg.AppName)
	require.Equal(t, "0.1.0", cfg.AppVersion)
	require.False(t, cfg.Debug)
	require.Equal(t, "falcon.db", cfg.DatabasePath)
	require.Equal(t, "wiki_storage", cfg.WikiStorageRoot)
	require.Equal(t, 300*time.Second, cfg.AgentTimeout)
	require.Equal(t, 3, cfg.AgentMaxConcurrent)
	require.Equal(t, 2, cfg.MaxConcurrentJobs)
	require.Equal(t, 3, cfg.JobMaxAttempts)
	require.Equal(t, time.Second, cfg.JobPollInterval)
	require.Equal(t, int64(512*1024), cfg.MaxFileSize)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Empty(t, cfg.MetricsAddr)
}

func TestLoad_OverridesFromEnvironment(t *testing.T) {
	clearFalconEnv(t)
	t.Setenv("FALCON_APP_NAME", "CustomFalcon")
	t.Setenv("FALCON_DEBUG", "true")
	t.Setenv("FALCON_MAX_CONCURRENT_JOBS", "7")
	t.Setenv("FALCON_JOB_POLL_INTERVAL_SECONDS", "0.5")
	t.Setenv("FALCON_HTTP_ADDR", ":9090")

	cfg := Load()

	require.Equal(t, "CustomFalcon", cfg.AppName)
	require.True(t, cfg.Debug)
	require.Equal(t, 7, cfg.MaxConcurrentJobs)
	require.Equal(t, 500*time.Millisecond, cfg.JobPollInterval)
	require.Equal(t, ":9090", cfg.HTTPAddr)
}

func TestLoad_MalformedIntFallsBackToDefault(t *testing.T) {
	clearFalconEnv(t)
	t.Setenv("FALCON_MAX_CONCURRENT_JOBS", "not-a-number")

	cfg := Load()
	require.Equal(t, 2, cfg.MaxConcurrentJobs)
}
