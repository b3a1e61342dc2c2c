package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/pulse/pkg/domain"
)

func TestLoad(t *testing.T) {
	content := `
server:
  listen: ":9090"
  timeout: 45s
schedule:
  poll_interval: 5m
  batch_size: 4
fetch:
  timeout: 10s
store:
  max_articles: 200
feeds:
  - name: "Test Feed"
    url: "https://example.com/feed.xml"
    kind: rss
    category: ai-news
    priority: high
proxies:
  - template: "https://relay.example.com/?url=%s"
    reliability: 0.9
    latency_ms: 500
`
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 45*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.PollInterval)
	assert.Equal(t, 4, cfg.Schedule.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 200, cfg.Store.MaxArticles)

	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, domain.KindRSS, cfg.Feeds[0].Kind)
	assert.Equal(t, "ai-news", cfg.Feeds[0].Category)

	require.Len(t, cfg.Proxies, 1)
	assert.InEpsilon(t, 0.9, cfg.Proxies[0].Reliability, 0.001)
}

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.PollInterval)
	assert.Equal(t, 5, cfg.Schedule.MaxWorkers)
	assert.Equal(t, 3, cfg.Fetch.ProxyAttempts)
	assert.Equal(t, 500, cfg.Store.MaxArticles)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Retry.Delay)
	assert.NotEmpty(t, cfg.Feeds, "built-in feed table expected")
	assert.NotEmpty(t, cfg.Proxies, "built-in proxy table expected")
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PULSE_LISTEN", ":7070")

	content := "server:\n  listen: \"${PULSE_LISTEN}\"\n"
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Listen)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte("feeds: {not a list"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("unknown feed kind", func(t *testing.T) {
		content := `
feeds:
  - name: "Bad"
    url: "https://example.com/feed"
    kind: carrier-pigeon
    category: ai-news
`
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown kind")
	})

	t.Run("bad reliability", func(t *testing.T) {
		content := `
proxies:
  - template: "https://relay.example.com/?url=%s"
    reliability: 1.5
`
		path := filepath.Join(t.TempDir(), "config.yml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	// every built-in feed must carry a known category
	known := map[string]bool{}
	for _, c := range Categories() {
		known[c] = true
	}
	for _, f := range cfg.Feeds {
		assert.True(t, known[f.Category], "feed %s has unknown category %s", f.Name, f.Category)
	}

	// video feeds must be marked as such
	for _, f := range cfg.Feeds {
		if f.Category == CategoryVideos {
			assert.Equal(t, domain.KindVideoChannel, f.Kind)
		}
	}
}
