package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_TARGET_CHAT_ID", "-1001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "5.131", cfg.VKAPIVersion)
	assert.Equal(t, "data/seen_posts.db", cfg.DatabasePath)
	assert.Equal(t, "sources.yaml", cfg.SourcesFile)
	assert.Equal(t, 60*time.Second, cfg.ScrapeInterval)
	assert.Equal(t, 600*time.Second, cfg.PostCheckDelay)
	assert.Equal(t, 1, cfg.FetchLimit)
	assert.Equal(t, 30, cfg.RateLimitRequestsPerMinute)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BaseDelay)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_TARGET_CHAT_ID", "-1001")
	t.Setenv("SCRAPE_INTERVAL", "5m")
	t.Setenv("POST_CHECK_DELAY", "120")
	t.Setenv("FETCH_LIMIT", "10")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.ScrapeInterval)
	assert.Equal(t, 2*time.Minute, cfg.PostCheckDelay)
	assert.Equal(t, 10, cfg.FetchLimit)
	assert.True(t, cfg.Debug)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "Missing bot token",
			env:  map[string]string{"TELEGRAM_TARGET_CHAT_ID": "-1001"},
		},
		{
			name: "Missing target chat",
			env:  map[string]string{"TELEGRAM_BOT_TOKEN": "token"},
		},
		{
			name: "Zero max retries",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":      "token",
				"TELEGRAM_TARGET_CHAT_ID": "-1001",
				"MAX_RETRIES":             "0",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "")
			t.Setenv("TELEGRAM_TARGET_CHAT_ID", "")
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `sources:
  - platform: telegram
    url: https://t.me/chan_one
  - platform: vk
    url: https://vk.com/group_two
    enabled: false
  - platform: telegram
    url: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "telegram", entries[0].Platform)
	assert.True(t, entries[0].IsEnabled())
	assert.Equal(t, "vk", entries[1].Platform)
	assert.False(t, entries[1].IsEnabled())
}

func TestLoadSources_WritesExampleWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")

	entries, err := LoadSources(path)
	require.NoError(t, err)
	assert.Empty(t, entries)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "platform: telegram")
}

func TestLoadSources_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - broken"), 0o644))

	_, err := LoadSources(path)
	assert.Error(t, err)
}
