package config

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds everything a clinic client needs at construction time.
type Config struct {
	// UnitID scopes all shared state to one clinic unit.
	UnitID string
	// ClientID identifies this process on the change feed. Generated per
	// start when not pinned by the environment.
	ClientID string
	// StationName labels this client in logs (registration desk, triage
	// terminal, panel).
	StationName string

	APIPort string

	CouchbaseURL      string
	CouchbaseUsername string
	CouchbasePassword string
	CouchbaseBucket   string

	RedisAddr     string
	RedisPassword string

	ClinicTimezone   string
	ResidencyTimeout time.Duration
	SweepInterval    time.Duration
	HistoryLimit     int
	SnapshotPath     string

	ElasticsearchURL    string
	EnableSystemMetrics bool
}

// Load reads configuration from the environment, honoring a local .env
// file in development.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env file")
	}

	return &Config{
		UnitID:      getEnv("CLINIC_UNIT_ID", "unit-1"),
		ClientID:    getEnv("CLIENT_ID", uuid.NewString()),
		StationName: getEnv("STATION_NAME", "station"),

		APIPort: getEnv("API_PORT", "8080"),

		CouchbaseURL:      getEnv("COUCHBASE_URL", "couchbase://callboard-db"),
		CouchbaseUsername: getEnv("COUCHBASE_USERNAME", "callboard_user"),
		CouchbasePassword: getEnv("COUCHBASE_PASSWORD", "password"),
		CouchbaseBucket:   getEnv("COUCHBASE_BUCKET", "callboard"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ClinicTimezone:   getEnv("CLINIC_TIMEZONE", "America/Sao_Paulo"),
		ResidencyTimeout: getEnvAsDuration("RESIDENCY_TIMEOUT", 10*time.Minute),
		SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", 60*time.Second),
		HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 20),
		SnapshotPath:     getEnv("SNAPSHOT_PATH", "callboard-snapshot.json"),

		ElasticsearchURL:    getEnv("ELASTICSEARCH_URL", ""),
		EnableSystemMetrics: getEnvAsBool("ENABLE_SYSTEM_METRICS", true),
	}
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Msg("Invalid integer in environment, using default")
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", key).Msg("Invalid boolean in environment, using default")
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Msg("Invalid duration in environment, using default")
	}
	return def
}
