package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrMissingDatabaseURL is returned when no store connection string is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Store drivers selected by the DATABASE_URL scheme.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds application configuration: store, cache, fetcher and provider settings.
type Config struct {
	Env            string   `yaml:"env" env:"ENV" env-default:"local"`
	DatabaseURL    string   `yaml:"database_url" env:"DATABASE_URL"`
	MigrationsPath string   `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
	RedisURL       string   `yaml:"redis_url" env:"REDIS_URL"`
	ServerPort     string   `yaml:"server_port" env:"SERVER_PORT" env-default:"8080"`
	CORSOrigins    []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`

	UserAgent         string        `yaml:"user_agent" env:"FETCHER_USER_AGENT" env-default:"EPGVault/1.0"`
	Timeout           time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT" env-default:"30s"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"FETCHER_RPS"`
	Retry             bool          `yaml:"retry" env:"FETCHER_RETRY"`

	Providers       []string `yaml:"providers" env:"PROVIDERS" env-separator:"," env-default:"mts,sbb"`
	MTSBaseURL      string   `yaml:"mts_base_url" env:"MTS_BASE_URL" env-default:"https://mts.rs/oec/epg"`
	UnitedBaseURL   string   `yaml:"united_base_url" env:"UNITED_BASE_URL" env-default:"https://api-web.ug-be.cdn.united.cloud"`
	UnitedImageURL  string   `yaml:"united_image_url" env:"UNITED_IMAGE_URL" env-default:"https://images-web.ug-be.cdn.united.cloud"`
	SBBBasicToken   string   `yaml:"sbb_basic_token" env:"SBB_BASIC_TOKEN"`
	SKBasicToken    string   `yaml:"sk_basic_token" env:"SK_BASIC_TOKEN"`
	DefaultImageURL string   `yaml:"default_image_url" env:"DEFAULT_IMAGE_URL" env-default:"https://static.epgvault.rs/img/placeholder.png"`

	DateSampleSize    int           `yaml:"date_sample_size" env:"DATE_SAMPLE_SIZE" env-default:"20"`
	DropEmptyChannels []string      `yaml:"drop_empty_channels" env:"DROP_EMPTY_CHANNELS" env-separator:","`
	StrictAuth        bool          `yaml:"strict_auth" env:"STRICT_AUTH"`
	Schedule          string        `yaml:"schedule" env:"SCHEDULE"`
	LockTTL           time.Duration `yaml:"lock_ttl" env:"LOCK_TTL" env-default:"30m"`
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env from the current directory.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks required settings. Secrets for every enabled provider must be
// present before any adapter is constructed.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.StoreDriver() == "" {
		return fmt.Errorf("DATABASE_URL: unsupported scheme (want postgres:// or mongodb://)")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("PROVIDERS: at least one provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p] {
			return fmt.Errorf("PROVIDERS: provider %q listed more than once", p)
		}
		seen[p] = true
		switch p {
		case "mts":
		case "sbb":
			if c.SBBBasicToken == "" {
				return fmt.Errorf("SBB_BASIC_TOKEN is required when provider sbb is enabled")
			}
		case "sk":
			if c.SKBasicToken == "" {
				return fmt.Errorf("SK_BASIC_TOKEN is required when provider sk is enabled")
			}
		default:
			return fmt.Errorf("PROVIDERS: unknown provider %q", p)
		}
	}
	if c.DateSampleSize <= 0 {
		return fmt.Errorf("DATE_SAMPLE_SIZE must be > 0")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("FETCHER_RPS must be >= 0")
	}
	return nil
}

// StoreDriver returns the store implementation implied by DATABASE_URL, or ""
// when the scheme is not supported.
func (c *Config) StoreDriver() string {
	switch {
	case strings.HasPrefix(c.DatabaseURL, "postgres://"), strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(c.DatabaseURL, "mongodb://"), strings.HasPrefix(c.DatabaseURL, "mongodb+srv://"):
		return DriverMongo
	}
	return ""
}

// DropEmpty reports whether channels without shows are dropped for provider.
func (c *Config) DropEmpty(provider string) bool {
	return slices.Contains(c.DropEmptyChannels, provider)
}
