package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/pulse/pkg/cache"
	"github.com/aipulse/pulse/pkg/domain"
)

func startCacheService(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := cache.NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)
	srv := NewCacheServer(st, "localhost:0", 5*time.Second, "test", false)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postArticles(t *testing.T, ts *httptest.Server, category string, articles []domain.Article) map[string]interface{} {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{"articles": articles})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/cache/"+category, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestCacheServer_SetAndGet(t *testing.T) {
	ts := startCacheService(t)

	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := postArticles(t, ts, "ai-news", []domain.Article{
		{Title: "First", CanonicalLink: "https://example.com/a", PublishedAt: published},
	})
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "1 articles")

	resp, err := http.Get(ts.URL + "/api/cache/ai-news")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Success   bool             `json:"success"`
		Data      []domain.Article `json:"data"`
		Timestamp time.Time        `json:"timestamp"`
		FromCache bool             `json:"fromCache"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.True(t, got.FromCache)
	assert.False(t, got.Timestamp.IsZero())
	require.Len(t, got.Data, 1)
	assert.Equal(t, "First", got.Data[0].Title)
}

func TestCacheServer_GetMiss(t *testing.T) {
	ts := startCacheService(t)

	resp, err := http.Get(ts.URL + "/api/cache/ai-news")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, false, got["fromCache"])
}

func TestCacheServer_MergeIdempotence(t *testing.T) {
	ts := startCacheService(t)

	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	article := domain.Article{Title: "Same", CanonicalLink: "https://example.com/s", PublishedAt: published}

	body := postArticles(t, ts, "ai-news", []domain.Article{article})
	assert.Contains(t, body["message"], "0 duplicates removed")

	// second post of the same article merges to one entry and reports
	// the duplicate
	body = postArticles(t, ts, "ai-news", []domain.Article{article})
	assert.Contains(t, body["message"], "cached 1 articles")
	assert.Contains(t, body["message"], "1 duplicates removed")

	resp, err := http.Get(ts.URL + "/api/cache/ai-news")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got struct {
		Data []domain.Article `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got.Data, 1)
}

func TestCacheServer_GetAll(t *testing.T) {
	ts := startCacheService(t)

	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	postArticles(t, ts, "ai-news", []domain.Article{{Title: "A", CanonicalLink: "https://example.com/a", PublishedAt: published}})
	postArticles(t, ts, "research", []domain.Article{{Title: "R", CanonicalLink: "https://example.com/r", PublishedAt: published}})

	resp, err := http.Get(ts.URL + "/api/cache")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Success bool                            `json:"success"`
		Data    map[string]domain.CacheSnapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	require.Len(t, got.Data, 2)
	assert.Equal(t, 1, got.Data["ai-news"].Count)
	assert.Equal(t, 1, got.Data["research"].Count)
}

func TestCacheServer_Refresh(t *testing.T) {
	ts := startCacheService(t)

	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	postArticles(t, ts, "ai-news", []domain.Article{{Title: "A", CanonicalLink: "https://example.com/a", PublishedAt: published}})

	resp, err := http.Post(ts.URL+"/api/cache/ai-news/refresh", "application/json", http.NoBody)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// invalidated entry reads as a miss
	resp, err = http.Get(ts.URL + "/api/cache/ai-news")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCacheServer_Clear(t *testing.T) {
	ts := startCacheService(t)

	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	postArticles(t, ts, "ai-news", []domain.Article{{Title: "A", CanonicalLink: "https://example.com/a", PublishedAt: published}})
	postArticles(t, ts, "research", []domain.Article{{Title: "R", CanonicalLink: "https://example.com/r", PublishedAt: published}})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/cache/ai-news", http.NoBody)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/cache/ai-news")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/cache", http.NoBody)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/cache/research")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCacheServer_Status(t *testing.T) {
	ts := startCacheService(t)

	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		postArticles(t, ts, "ai-news", []domain.Article{
			{Title: fmt.Sprintf("A%d", i), CanonicalLink: fmt.Sprintf("https://example.com/a%d", i), PublishedAt: published},
		})
	}

	resp, err := http.Get(ts.URL + "/api/cache/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Success bool                         `json:"success"`
		Data    map[string]cache.EntryStatus `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	require.Contains(t, got.Data, "ai-news")
	assert.Equal(t, 3, got.Data["ai-news"].Count)
	assert.False(t, got.Data["ai-news"].Expired)
}

func TestCacheServer_RejectsBadPayload(t *testing.T) {
	ts := startCacheService(t)

	resp, err := http.Post(ts.URL+"/api/cache/ai-news", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
