package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "wishlist_tracker", cfg.Database.Name)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Scraper.Headless)
	assert.Equal(t, 2, cfg.Scraper.ConcurrentWorkers)
	assert.Equal(t, "https://www.amazon.com.br", cfg.Scraper.MarketplaceHost)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SCRAPER_HEADLESS", "false")
	t.Setenv("SCRAPER_TIMEOUT", "45")
	t.Setenv("SCRAPER_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.False(t, cfg.Scraper.Headless)
	assert.Equal(t, 45*time.Second, cfg.Scraper.Timeout())
	assert.Equal(t, 4, cfg.Scraper.ConcurrentWorkers)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("SCRAPER_HEADLESS", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8086, cfg.Server.Port)
	assert.True(t, cfg.Scraper.Headless)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8086},
			Database: DatabaseConfig{Host: "localhost", Name: "wishlist_tracker"},
			Scraper: ScraperConfig{
				ConcurrentWorkers: 1,
				RateLimitMinMS:    1000,
				RateLimitMaxMS:    3000,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, true},
		{"missing db name", func(c *Config) { c.Database.Name = "" }, true},
		{"zero workers", func(c *Config) { c.Scraper.ConcurrentWorkers = 0 }, true},
		{"rate limit min above max", func(c *Config) { c.Scraper.RateLimitMinMS = 5000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
