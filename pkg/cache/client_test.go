package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/pulse/pkg/domain"
)

func TestClient_Get(t *testing.T) {
	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/cache/ai-news", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":   true,
			"data":      []domain.Article{{Title: "Hit", CanonicalLink: "https://example.com/a", PublishedAt: published}},
			"timestamp": published,
			"fromCache": true,
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	articles, ok, err := c.Get(context.Background(), "ai-news")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, articles, 1)
	assert.Equal(t, "Hit", articles[0].Title)
}

func TestClient_GetMiss(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "fromCache": false})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	articles, ok, err := c.Get(context.Background(), "ai-news")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, articles)
}

func TestClient_GetServiceDownIsMiss(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100*time.Millisecond)
	articles, ok, err := c.Get(context.Background(), "ai-news")
	require.NoError(t, err, "unreachable cache is a miss, not an error")
	assert.False(t, ok)
	assert.Nil(t, articles)
}

func TestClient_Put(t *testing.T) {
	var got []domain.Article
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cache/research", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Articles []domain.Article `json:"articles"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = req.Articles

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "cached"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	err := c.Put(context.Background(), "research", []domain.Article{{Title: "New", CanonicalLink: "https://example.com/n"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New", got[0].Title)
}

func TestClient_PutRetriesTransientFailure(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "cached"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	err := c.Put(context.Background(), "ai-news", []domain.Article{{Title: "Retry", CanonicalLink: "https://example.com/r"}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_PutGivesUpAfterRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	err := c.Put(context.Background(), "ai-news", []domain.Article{{Title: "Doomed", CanonicalLink: "https://example.com/d"}})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_RefreshAndClear(t *testing.T) {
	var paths []string
	var methods []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		methods = append(methods, r.Method)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": "ok"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	require.NoError(t, c.Refresh(context.Background(), "ai-news"))
	require.NoError(t, c.Clear(context.Background(), "ai-news"))
	require.NoError(t, c.Clear(context.Background(), ""))

	assert.Equal(t, []string{"/api/cache/ai-news/refresh", "/api/cache/ai-news", "/api/cache"}, paths)
	assert.Equal(t, []string{http.MethodPost, http.MethodDelete, http.MethodDelete}, methods)
}

func TestClient_Status(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cache/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]EntryStatus{
				"ai-news": {Count: 12, Timestamp: now, AgeMs: 60000, Expired: false},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, time.Second)
	status, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 1)
	assert.Equal(t, 12, status["ai-news"].Count)
	assert.False(t, status["ai-news"].Expired)
}
