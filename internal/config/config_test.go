package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/epg?sslmode=disable")
	t.Setenv("SBB_BASIC_TOKEN", "c2JiOnNlY3JldA==")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, DriverPostgres, cfg.StoreDriver())
	require.Equal(t, []string{"mts", "sbb"}, cfg.Providers)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, 20, cfg.DateSampleSize)
	require.Equal(t, "EPGVault/1.0", cfg.UserAgent)
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, 30*time.Minute, cfg.LockTTL)
	require.False(t, cfg.StrictAuth)
	require.False(t, cfg.DropEmpty("mts"))
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.True(t, errors.Is(err, ErrMissingDatabaseURL))
}

func TestLoad_MissingProviderToken(t *testing.T) {
	t.Setenv("DATABASE_URL", "mongodb://localhost:27017/epg")
	t.Setenv("PROVIDERS", "mts,sk")
	t.Setenv("SK_BASIC_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "SK_BASIC_TOKEN")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DatabaseURL:    "mongodb+srv://u:p@cluster.example.net/epg",
			Providers:      []string{"mts"},
			DateSampleSize: 20,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"bad scheme", func(c *Config) { c.DatabaseURL = "mysql://x" }, true},
		{"no providers", func(c *Config) { c.Providers = nil }, true},
		{"unknown provider", func(c *Config) { c.Providers = []string{"dtv"} }, true},
		{"sample size", func(c *Config) { c.DateSampleSize = 0 }, true},
		{"negative rps", func(c *Config) { c.RequestsPerSecond = -1 }, true},
		{"sbb with token", func(c *Config) { c.Providers = []string{"sbb"}; c.SBBBasicToken = "x" }, false},
		{"repeated provider", func(c *Config) { c.Providers = []string{"mts", "mts"} }, true},
		{"repeated united provider", func(c *Config) { c.Providers = []string{"sbb", "mts", "sbb"}; c.SBBBasicToken = "x" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStoreDriver(t *testing.T) {
	require.Equal(t, DriverMongo, (&Config{DatabaseURL: "mongodb+srv://h/db"}).StoreDriver())
	require.Equal(t, DriverMongo, (&Config{DatabaseURL: "mongodb://h/db"}).StoreDriver())
	require.Equal(t, DriverPostgres, (&Config{DatabaseURL: "postgresql://h/db"}).StoreDriver())
	require.Empty(t, (&Config{DatabaseURL: "sqlite:///tmp/x"}).StoreDriver())
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epgvault.yaml")
	yml := `
database_url: mongodb://localhost:27017/epg
providers: [mts]
timeout: 10s
date_sample_size: 5
drop_empty_channels: [mts]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("FETCHER_USER_AGENT", "test-agent")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	require.Equal(t, DriverMongo, cfg.StoreDriver())
	require.Equal(t, []string{"mts"}, cfg.Providers)
	require.Equal(t, 10*time.Second, cfg.Timeout)
	require.Equal(t, 5, cfg.DateSampleSize)
	require.True(t, cfg.DropEmpty("mts"))
	require.Equal(t, "test-agent", cfg.UserAgent)
	require.Equal(t, "migrations", cfg.MigrationsPath)
}
