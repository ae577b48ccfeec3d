package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Weather API.
	NWSBaseURL   string
	NWSUserAgent string
	NWSTimeout   time.Duration

	// Refresh policy.
	RiskStrategy       string
	RefreshSchedule    string
	RefreshStaleAfter  time.Duration
	RefreshConcurrency int

	// Storage. An empty DatabaseURL selects the in-memory store.
	DatabaseURL string
	RedisURL    string
	RedisTTL    time.Duration

	// Snapshot events. No brokers disables publishing.
	KafkaBrokers       []string
	KafkaSnapshotTopic string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first when present; real
// environment variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	nwsTimeout, err := parseDuration("NWS_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	staleAfter, err := parseDuration("REFRESH_STALE_AFTER", "6h")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parseDuration("REDIS_TTL", "6h")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	concurrency, err := strconv.Atoi(sharedcfg.EnvOrDefault("REFRESH_CONCURRENCY", "1"))
	if err != nil || concurrency <= 0 {
		return nil, errors.New("invalid REFRESH_CONCURRENCY: must be a positive integer")
	}

	strategy := sharedcfg.EnvOrDefault("RISK_STRATEGY", "additive")
	if strategy != "additive" && strategy != "averaged" {
		return nil, fmt.Errorf("invalid RISK_STRATEGY %q: want additive or averaged", strategy)
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		NWSBaseURL:   sharedcfg.EnvOrDefault("NWS_BASE_URL", "https://api.weather.gov"),
		NWSUserAgent: sharedcfg.EnvOrDefault("NWS_USER_AGENT", "(mapshield, ops@mapshield.example)"),
		NWSTimeout:   nwsTimeout,

		RiskStrategy:       strategy,
		RefreshSchedule:    sharedcfg.EnvOrDefault("REFRESH_SCHEDULE", "0 */6 * * *"),
		RefreshStaleAfter:  staleAfter,
		RefreshConcurrency: concurrency,

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		RedisTTL:    redisTTL,

		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "site-weather-snapshots"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether snapshot events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
