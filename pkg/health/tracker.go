// Package health records per-feed failure streaks and per-category
// success ratios, driving retry scheduling and the diagnostic surface.
package health

import (
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/aipulse/pulse/pkg/domain"
)

// Options holds retry thresholds
type Options struct {
	MaxRetries        int           // failure streak before a feed goes dead, default 3
	RetryDelay        time.Duration // cooldown before re-attempting a failed feed, default 5m
	CategoryWarnRatio float64       // ratio below which a category is flagged, default 0.5
}

func (o *Options) setDefaults() {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = 5 * time.Minute
	}
	if o.CategoryWarnRatio == 0 {
		o.CategoryWarnRatio = 0.5
	}
}

// Tracker observes every fetch outcome. Feeds past the retry ceiling are
// not retried automatically but stay visible until a full refresh resets
// them.
type Tracker struct {
	opts Options
	now  func() time.Time

	mu         sync.Mutex
	feeds      map[string]*feedState // keyed by FeedSource.URL
	categories map[string]*domain.CategoryHealth
}

type feedState struct {
	src    domain.FeedSource
	health domain.FeedHealth
}

// NewTracker creates a tracker
func NewTracker(opts Options) *Tracker {
	opts.setDefaults()
	return &Tracker{
		opts:       opts,
		now:        time.Now,
		feeds:      map[string]*feedState{},
		categories: map[string]*domain.CategoryHealth{},
	}
}

// RecordOutcome registers one fetch outcome for a feed. Success resets
// the failure streak and clears the last error.
func (t *Tracker) RecordOutcome(src domain.FeedSource, success bool, fetchErr error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.feeds[src.URL]
	if state == nil {
		state = &feedState{src: src}
		t.feeds[src.URL] = state
	}
	state.health.LastAttemptAt = t.now()

	cat := t.categories[src.Category]
	if cat == nil {
		cat = &domain.CategoryHealth{}
		t.categories[src.Category] = cat
	}
	cat.Attempts++

	if success {
		state.health.ConsecutiveFailures = 0
		state.health.LastError = ""
		cat.Successes++
		return
	}

	state.health.ConsecutiveFailures++
	if fetchErr != nil {
		state.health.LastError = fetchErr.Error()
	}
	if state.health.ConsecutiveFailures == t.opts.MaxRetries {
		lgr.Printf("[WARN] feed %s dead after %d consecutive failures, last error: %s",
			src.Name, state.health.ConsecutiveFailures, state.health.LastError)
	}
}

// DueForRetry returns failed feeds whose cooldown has elapsed and whose
// failure streak is still below the retry ceiling
func (t *Tracker) DueForRetry() []domain.FeedSource {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var due []domain.FeedSource
	for _, state := range t.feeds {
		failures := state.health.ConsecutiveFailures
		if failures == 0 || failures >= t.opts.MaxRetries {
			continue
		}
		if now.Sub(state.health.LastAttemptAt) < t.opts.RetryDelay {
			continue
		}
		due = append(due, state.src)
	}
	return due
}

// ResetAll clears every failure streak, bringing dead feeds back into
// scheduling. Invoked by the manual/full-refresh cycle.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, state := range t.feeds {
		state.health.ConsecutiveFailures = 0
		state.health.LastError = ""
	}
	lgr.Printf("[INFO] feed health reset, all feeds back in rotation")
}

// FeedHealth returns a snapshot of per-feed health keyed by feed URL
func (t *Tracker) FeedHealth() map[string]domain.FeedHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := make(map[string]domain.FeedHealth, len(t.feeds))
	for url, state := range t.feeds {
		res[url] = state.health
	}
	return res
}

// CategorySuccessRatio returns the cumulative success ratio for one
// category, 1.0 when it has not been attempted
func (t *Tracker) CategorySuccessRatio(category string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cat := t.categories[category]; cat != nil {
		return cat.SuccessRatio()
	}
	return 1.0
}

// UnhealthyCategories lists categories whose success ratio dropped below
// the warning threshold. Diagnostic only: scheduling never consults it.
func (t *Tracker) UnhealthyCategories() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var res []string
	for name, cat := range t.categories {
		if cat.SuccessRatio() < t.opts.CategoryWarnRatio {
			res = append(res, name)
		}
	}
	return res
}

// CategoryHealth returns a snapshot of per-category statistics
func (t *Tracker) CategoryHealth() map[string]domain.CategoryHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := make(map[string]domain.CategoryHealth, len(t.categories))
	for name, cat := range t.categories {
		res[name] = *cat
	}
	return res
}
