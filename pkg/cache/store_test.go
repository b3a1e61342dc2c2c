package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/pulse/pkg/domain"
)

func testArticle(link, title string, published time.Time) domain.Article {
	return domain.Article{
		Title:         title,
		CanonicalLink: link,
		Summary:       "summary of " + title,
		PublishedAt:   published,
		DateKnown:     true,
		Author:        "Editorial",
		SourceName:    "Test Source",
		Category:      "ai-news",
	}
}

func TestFileStore_SetAndGet(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		testArticle("https://example.com/a", "First", base),
		testArticle("https://example.com/b", "Second", base.Add(time.Hour)),
	}

	count, dups, err := st.Set("ai-news", articles)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, dups)

	snapshot, err := st.Get("ai-news")
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.Count)
	assert.Equal(t, "Second", snapshot.Articles[0].Title, "newest first")
	assert.Equal(t, "First", snapshot.Articles[1].Title)
	assert.False(t, snapshot.Timestamp.IsZero())
}

func TestFileStore_GetMiss(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	_, err = st.Get("ai-news")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestFileStore_GetStale(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", now)})
	require.NoError(t, err)

	// still fresh just inside the TTL
	st.now = func() time.Time { return now.Add(29 * time.Minute) }
	_, err = st.Get("ai-news")
	require.NoError(t, err)

	// past the TTL the entry reads as stale
	st.now = func() time.Time { return now.Add(31 * time.Minute) }
	_, err = st.Get("ai-news")
	assert.ErrorIs(t, err, ErrStale)
}

func TestFileStore_MergeDedup(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := testArticle("https://example.com/a", "First", base)

	count, dups, err := st.Set("ai-news", []domain.Article{first})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 0, dups)

	// posting the same article again merges to a single entry and the
	// duplicate is counted against the merged set
	count, dups, err = st.Set("ai-news", []domain.Article{first})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, dups)

	// same link but different title is a distinct entry
	renamed := first
	renamed.Title = "First, updated"
	count, dups, err = st.Set("ai-news", []domain.Article{renamed})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, dups)
}

func TestFileStore_MergeKeepsExisting(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", base)})
	require.NoError(t, err)

	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/b", "Second", base.Add(time.Hour))})
	require.NoError(t, err)

	snapshot, err := st.Get("ai-news")
	require.NoError(t, err)
	require.Equal(t, 2, snapshot.Count)
	assert.Equal(t, "Second", snapshot.Articles[0].Title)
	assert.Equal(t, "First", snapshot.Articles[1].Title)
}

func TestFileStore_Refresh(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", base)})
	require.NoError(t, err)

	require.NoError(t, st.Refresh("ai-news"))

	_, err = st.Get("ai-news")
	assert.ErrorIs(t, err, ErrStale)

	// refreshing a missing category is not an error
	assert.NoError(t, st.Refresh("robotics"))
}

func TestFileStore_Clear(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", base)})
	require.NoError(t, err)
	_, _, err = st.Set("research", []domain.Article{testArticle("https://example.com/b", "Second", base)})
	require.NoError(t, err)

	require.NoError(t, st.Clear("ai-news"))
	_, err = st.Get("ai-news")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = st.Get("research")
	assert.NoError(t, err)

	require.NoError(t, st.Clear(""))
	_, err = st.Get("research")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestFileStore_Status(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", now)})
	require.NoError(t, err)
	_, _, err = st.Set("research", []domain.Article{testArticle("https://example.com/b", "Second", now)})
	require.NoError(t, err)

	st.now = func() time.Time { return now.Add(40 * time.Minute) }
	require.NoError(t, st.Refresh("research")) // keeps data, forces staleness

	status, err := st.Status()
	require.NoError(t, err)
	require.Len(t, status, 2)

	assert.Equal(t, 1, status["ai-news"].Count)
	assert.Equal(t, int64(40*time.Minute/time.Millisecond), status["ai-news"].AgeMs)
	assert.True(t, status["ai-news"].Expired)
	assert.True(t, status["research"].Expired)
}

func TestFileStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	st, err := NewFileStore(dir, 30*time.Minute)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", base)})
	require.NoError(t, err)

	st2, err := NewFileStore(dir, 30*time.Minute)
	require.NoError(t, err)
	st2.now = st.now

	snapshot, err := st2.Get("ai-news")
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Count)
	assert.Equal(t, "First", snapshot.Articles[0].Title)
}

func TestFileStore_CorruptSnapshotIsMiss(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir, 30*time.Minute)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ai-news.json"), []byte("{not json"), 0o600))

	_, err = st.Get("ai-news")
	assert.ErrorIs(t, err, ErrMiss)

	// a write replaces the corrupt file
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	count, _, err := st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", base)})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFileStore_RejectsBadCategory(t *testing.T) {
	st, err := NewFileStore(t.TempDir(), 30*time.Minute)
	require.NoError(t, err)

	_, _, err = st.Set("../escape", nil)
	assert.Error(t, err)
	_, err = st.Get("has space")
	assert.Error(t, err)
}

func TestFileStore_SnapshotFileShape(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir, 30*time.Minute)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = st.Set("ai-news", []domain.Article{testArticle("https://example.com/a", "First", base)})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "ai-news.json"))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "articles")
	assert.Contains(t, doc, "timestamp")
	assert.Contains(t, doc, "count")
}
