package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
market:
  base_url: https://api.partner.example/v2
sync:
  managed_spaces: [msk, " ", spb]
  pause: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "https://api.partner.example/v2", cfg.Market.BaseURL)
	assert.Equal(t, []string{"msk", "spb"}, cfg.Sync.ManagedSpaces)
	assert.Equal(t, 2*time.Second, cfg.Sync.Pause)
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.Equal(t, 15, cfg.Sync.RegionMaxPages)
	assert.Equal(t, time.Duration(0), cfg.Sync.Interval)
	assert.Equal(t, "store_catalog_change", cfg.Listener.Channel)
	assert.Equal(t, 30*time.Second, cfg.MarketTimeout())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "market:\n  base_url: https://api.partner.example\n")
	t.Setenv("OUTLETSYNC_MARKET_OAUTH_TOKEN", "secret")
	t.Setenv("OUTLETSYNC_SYNC_PAGE_SIZE", "20")
	t.Setenv("OUTLETSYNC_POSTGRES_HOST", "db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Market.OAuthToken)
	assert.Equal(t, 20, cfg.Sync.PageSize)
	assert.Equal(t, "postgres://:@db:5432/?sslmode=disable", cfg.DSN())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad base url", "market:\n  base_url: not a url\n"},
		{"zero pause", "market:\n  base_url: https://x.example\nsync:\n  pause: 0s\n"},
		{"page size too large", "market:\n  base_url: https://x.example\nsync:\n  page_size: 51\n"},
		{"bad log format", "market:\n  base_url: https://x.example\nserver:\n  log_format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_PostgresOnly(t *testing.T) {
	cfg, err := Load(writeConfig(t, "postgres:\n  host: db\n  db_name: outlets\n"))
	require.NoError(t, err, "migrate must work without partner settings")
	assert.Equal(t, "postgres://:@db:5432/outlets?sslmode=disable", cfg.DSN())
	assert.Error(t, cfg.RequireMarket())

	cfg.Market.BaseURL = "https://api.partner.example"
	assert.NoError(t, cfg.RequireMarket())
}
