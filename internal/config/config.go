// Package config loads the bridge configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Cache backends
const (
	CacheMemory    = "memory"
	CacheFile      = "file"
	CacheRedis     = "redis"
	CacheCouchbase = "couchbase"
)

// Config is the full bridge configuration
type Config struct {
	FHIRBaseURL string        `mapstructure:"FHIR_BASE_URL"`
	FHIRTimeout time.Duration `mapstructure:"FHIR_TIMEOUT"`

	EpicClientID       string `mapstructure:"EPIC_CLIENT_ID"`
	EpicTokenURL       string `mapstructure:"EPIC_TOKEN_URL"`
	EpicPrivateKeyPath string `mapstructure:"EPIC_PRIVATE_KEY_PATH"`
	EpicFHIRGroupID    string `mapstructure:"EPIC_FHIR_GROUP_ID"`

	TnTReceiveEndpoint string `mapstructure:"TNT_RECEIVE_ENDPOINT"`
	TnTAccessToken     string `mapstructure:"TNT_ACCESS_TOKEN"`
	TnTEnvironment     string `mapstructure:"TNT_ENVIRONMENT"`

	CacheBackend  string        `mapstructure:"CACHE_BACKEND"`
	CacheDir      string        `mapstructure:"CACHE_DIR"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`
	FetchPacing   time.Duration `mapstructure:"FETCH_PACING"`
	CacheCoalesce bool          `mapstructure:"CACHE_COALESCE"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	CouchbaseURL      string `mapstructure:"COUCHBASE_URL"`
	CouchbaseUsername string `mapstructure:"COUCHBASE_USERNAME"`
	CouchbasePassword string `mapstructure:"COUCHBASE_PASSWORD"`
	CouchbaseBucket   string `mapstructure:"COUCHBASE_BUCKET"`

	APIPort          string `mapstructure:"API_PORT"`
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`
	IngestSchedule   string `mapstructure:"INGEST_SCHEDULE"`

	EnableBusinessMetrics bool `mapstructure:"ENABLE_BUSINESS_METRICS"`
	EnableSystemMetrics   bool `mapstructure:"ENABLE_SYSTEM_METRICS"`
}

var defaults = map[string]any{
	"FHIR_BASE_URL":           "https://fhir.epic.com/interconnect-fhir-oauth/api/FHIR/R4",
	"FHIR_TIMEOUT":            "30s",
	"EPIC_TOKEN_URL":          "https://fhir.epic.com/interconnect-fhir-oauth/oauth2/token",
	"TNT_ENVIRONMENT":         "test",
	"CACHE_BACKEND":           CacheMemory,
	"CACHE_DIR":               ".cache",
	"CACHE_TTL":               "9600s",
	"FETCH_PACING":            "1s",
	"CACHE_COALESCE":          false,
	"REDIS_ADDR":              "localhost:6379",
	"COUCHBASE_BUCKET":        "adtbridge",
	"API_PORT":                "8080",
	"LOG_LEVEL":               "info",
	"INGEST_SCHEDULE":         "",
	"ENABLE_BUSINESS_METRICS": true,
	"ENABLE_SYSTEM_METRICS":   false,
}

// keys without a default still need binding so Unmarshal sees them
var unbound = []string{
	"EPIC_CLIENT_ID",
	"EPIC_PRIVATE_KEY_PATH",
	"EPIC_FHIR_GROUP_ID",
	"TNT_RECEIVE_ENDPOINT",
	"TNT_ACCESS_TOKEN",
	"COUCHBASE_URL",
	"COUCHBASE_USERNAME",
	"COUCHBASE_PASSWORD",
	"ELASTICSEARCH_URL",
}

// LoadDotEnv loads ../.env, falling back to .env. A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load("../.env"); err != nil {
		log.Debug().Msg("Not found .env file in parent directory, trying current directory")
		if err := godotenv.Load(".env"); err != nil {
			log.Debug().Msg("Not found .env file in current directory, assuming environment variables are set")
		}
	}
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range unbound {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable fallback
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case CacheMemory, CacheFile, CacheRedis:
	case CacheCouchbase:
		if c.CouchbaseURL == "" {
			return fmt.Errorf("COUCHBASE_URL is required when CACHE_BACKEND is %q", CacheCouchbase)
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.FHIRTimeout <= 0 {
		return fmt.Errorf("FHIR_TIMEOUT must be positive, got %s", c.FHIRTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

// IsProduction reports whether the TnT environment is production
func (c *Config) IsProduction() bool {
	return c.TnTEnvironment == "production"
}

// BackendAuthEnabled reports whether Epic backend-services credentials are set
func (c *Config) BackendAuthEnabled() bool {
	return c.EpicClientID != "" && c.EpicPrivateKeyPath != ""
}

// DeliveryEnabled reports whether a TnT endpoint is configured
func (c *Config) DeliveryEnabled() bool {
	return c.TnTReceiveEndpoint != ""
}
