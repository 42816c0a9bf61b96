package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Scraper.Workers)
	assert.Equal(t, 45*time.Second, cfg.Scraper.StoreTimeout)
	assert.Equal(t, 5, cfg.Scraper.MaxCards)
	assert.Equal(t, EnginePlaywright, cfg.Browser.Engine)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "price_compare.db", cfg.Database.Path)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, []string{"water", "milk", "bread", "eggs"}, cfg.Scheduler.Products)
	assert.True(t, cfg.Engine.PersistOnCompare)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SCRAPER_WORKERS", "8")
	t.Setenv("SCRAPER_STORE_TIMEOUT", "10s")
	t.Setenv("BROWSER_ENGINE", "HTTP")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SCHEDULER_PRODUCTS", " tea, ,coffee ")
	t.Setenv("SCHEDULER_STORES", "migros")
	t.Setenv("PERSIST_ON_COMPARE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Scraper.Workers)
	assert.Equal(t, 10*time.Second, cfg.Scraper.StoreTimeout)
	assert.Equal(t, EngineHTTP, cfg.Browser.Engine)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"tea", "coffee"}, cfg.Scheduler.Products)
	assert.Equal(t, []string{"migros"}, cfg.Scheduler.Stores)
	assert.False(t, cfg.Engine.PersistOnCompare)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad workers", "SCRAPER_WORKERS", "many"},
		{"zero workers", "SCRAPER_WORKERS", "0"},
		{"bad engine", "BROWSER_ENGINE", "lynx"},
		{"bad driver", "DB_DRIVER", "mongo"},
		{"bad port", "PORT", "70000"},
		{"no scheduler stores", "SCHEDULER_STORES", ""},
		{"consumer without redis", "CONSUMER_ENABLED", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestResolveWorkers(t *testing.T) {
	n, err := ResolveWorkers("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = ResolveWorkers("auto")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, maxAutoWorkers)

	_, err = ResolveWorkers("lots")
	assert.Error(t, err)
}

func TestClampWorkers(t *testing.T) {
	assert.Equal(t, 1, clampWorkers(0))
	assert.Equal(t, 6, clampWorkers(6))
	assert.Equal(t, maxAutoWorkers, clampWorkers(64))
}
