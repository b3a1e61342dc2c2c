package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipulse/pulse/pkg/domain"
)

func testFeed(name string) domain.FeedSource {
	return domain.FeedSource{
		Name:     name,
		URL:      "https://example.com/" + name,
		Kind:     domain.KindRSS,
		Category: "ai-news",
	}
}

func TestTracker_RecordOutcome(t *testing.T) {
	tr := NewTracker(Options{})
	feed := testFeed("feed")

	tr.RecordOutcome(feed, false, errors.New("connection refused"))
	tr.RecordOutcome(feed, false, errors.New("timeout"))

	h := tr.FeedHealth()[feed.URL]
	assert.Equal(t, 2, h.ConsecutiveFailures)
	assert.Equal(t, "timeout", h.LastError)
	assert.False(t, h.LastAttemptAt.IsZero())

	// success resets the streak and clears the error
	tr.RecordOutcome(feed, true, nil)
	h = tr.FeedHealth()[feed.URL]
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.Empty(t, h.LastError)
}

func TestTracker_DueForRetry(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(Options{MaxRetries: 3, RetryDelay: 5 * time.Minute})
	tr.now = func() time.Time { return current }

	feed := testFeed("flaky")
	tr.RecordOutcome(feed, false, errors.New("boom"))

	// cooldown not elapsed yet
	assert.Empty(t, tr.DueForRetry())

	// cooldown elapsed
	current = current.Add(6 * time.Minute)
	due := tr.DueForRetry()
	require.Len(t, due, 1)
	assert.Equal(t, feed.URL, due[0].URL)

	// healthy feeds are never due
	healthy := testFeed("healthy")
	tr.RecordOutcome(healthy, true, nil)
	current = current.Add(time.Hour)
	due = tr.DueForRetry()
	require.Len(t, due, 1)
	assert.Equal(t, feed.URL, due[0].URL)
}

func TestTracker_RetryCeiling(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(Options{MaxRetries: 3, RetryDelay: time.Minute})
	tr.now = func() time.Time { return current }

	feed := testFeed("dead")
	for i := 0; i < 3; i++ {
		tr.RecordOutcome(feed, false, errors.New("down"))
		current = current.Add(2 * time.Minute)
	}

	// past the ceiling: excluded even though the delay elapsed
	current = current.Add(time.Hour)
	assert.Empty(t, tr.DueForRetry())

	// but still visible on the health surface
	h := tr.FeedHealth()[feed.URL]
	assert.Equal(t, 3, h.ConsecutiveFailures)

	// full refresh brings it back
	tr.ResetAll()
	h = tr.FeedHealth()[feed.URL]
	assert.Equal(t, 0, h.ConsecutiveFailures)
}

func TestTracker_CategorySuccessRatio(t *testing.T) {
	tr := NewTracker(Options{CategoryWarnRatio: 0.5})

	feed := testFeed("feed")
	tr.RecordOutcome(feed, true, nil)
	tr.RecordOutcome(feed, false, errors.New("boom"))
	tr.RecordOutcome(feed, false, errors.New("boom"))
	tr.RecordOutcome(feed, false, errors.New("boom"))

	assert.InEpsilon(t, 0.25, tr.CategorySuccessRatio("ai-news"), 0.001)
	assert.Equal(t, []string{"ai-news"}, tr.UnhealthyCategories())

	// untouched categories report a clean ratio
	assert.InEpsilon(t, 1.0, tr.CategorySuccessRatio("robotics"), 0.001)

	stats := tr.CategoryHealth()["ai-news"]
	assert.Equal(t, 4, stats.Attempts)
	assert.Equal(t, 1, stats.Successes)
}

func TestTracker_UnhealthyNeverGatesRetry(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(Options{MaxRetries: 5, RetryDelay: time.Minute, CategoryWarnRatio: 0.9})
	tr.now = func() time.Time { return current }

	feed := testFeed("struggling")
	tr.RecordOutcome(feed, false, errors.New("boom"))

	require.NotEmpty(t, tr.UnhealthyCategories())

	// the unhealthy flag must not keep the feed out of retry scheduling
	current = current.Add(2 * time.Minute)
	assert.Len(t, tr.DueForRetry(), 1)
}
