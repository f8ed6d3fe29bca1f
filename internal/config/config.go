// Package config loads process configuration from FALCON_-prefixed
// environment variables, the way the teacher's pkg/ingestion.Config /
// DefaultConfig() pair separates "what can be tuned" from "what the
// defaults are."
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable named in spec.md §6.
type Config struct {
	// AppName / AppVersion are read from the environment; /health
	// reports the binary's build-time version, not these fields.
	AppName    string
	AppVersion string
	Debug      bool

	// DatabasePath is the SQLite file backing internal/store.
	DatabasePath string

	// WikiStorageRoot is where completed wiki output is copied (§4.9 Phase 5).
	WikiStorageRoot string

	// AgentAPIKey / AgentTimeout configure internal/agentrunner.
	AgentAPIKey        string
	AgentTimeout       time.Duration
	AgentMaxConcurrent int // codex_max_concurrent: wave page-generation width

	// MaxConcurrentJobs / JobPollInterval configure
	// internal/orchestrator. JobMaxAttempts is loaded but not applied:
	// jobs take max_attempts from the schema default (3).
	MaxConcurrentJobs int
	JobMaxAttempts    int
	JobPollInterval   time.Duration

	// SourceHostToken is the optional GitHub API token.
	SourceHostToken string

	// MaxFileSize bounds ingested file size (spec §4.6).
	MaxFileSize int64

	// MetricsAddr is loaded but no separate listener uses it;
	// Prometheus metrics are served at /metrics on HTTPAddr.
	MetricsAddr string

	// HTTPAddr is where the `falcon serve` HTTP/SSE boundary listens.
	HTTPAddr string
}

// Load reads configuration from the environment, falling back to the
// same defaults the original Settings() class shipped.
func Load() Config {
	return Config{
		AppName:            getString("FALCON_APP_NAME", "Falcon"),
		AppVersion:         getString("FALCON_APP_VERSION", "0.1.0"),
		Debug:              getBool("FALCON_DEBUG", false),
		DatabasePath:       getString("FALCON_DATABASE_PATH", "falcon.db"),
		WikiStorageRoot:    getString("FALCON_WIKI_STORAGE_ROOT", "wiki_storage"),
		AgentAPIKey:        os.Getenv("FALCON_CODEX_API_KEY"),
		AgentTimeout:       getDuration("FALCON_CODEX_TIMEOUT_SECONDS", 300*time.Second),
		AgentMaxConcurrent: getInt("FALCON_CODEX_MAX_CONCURRENT", 3),
		MaxConcurrentJobs:  getInt("FALCON_MAX_CONCURRENT_JOBS", 2),
		JobMaxAttempts:     getInt("FALCON_JOB_MAX_ATTEMPTS", 3),
		JobPollInterval:    getDurationFloat("FALCON_JOB_POLL_INTERVAL_SECONDS", time.Second),
		SourceHostToken:    os.Getenv("FALCON_GITHUB_API_TOKEN"),
		MaxFileSize:        int64(getInt("FALCON_MAX_FILE_SIZE", 512*1024)),
		MetricsAddr:        os.Getenv("FALCON_METRICS_ADDR"),
		HTTPAddr:           getString("FALCON_HTTP_ADDR", ":8080"),
	}
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func getDurationFloat(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}
