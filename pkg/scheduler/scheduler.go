// Package scheduler drives the polling pipeline: it batches feeds by
// priority, runs fetch+parse concurrently with a worker cap, merges the
// results into the article store and feeds every outcome into the
// health tracker. A faster retry sweep re-attempts failed feeds between
// full polls.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/aipulse/pulse/pkg/domain"
	"github.com/aipulse/pulse/pkg/fetcher"
)

// cycle states exposed via State()
const (
	StateIdle     = "idle"
	StateBatching = "batching"
	StateFetching = "fetching"
	StateMerging  = "merging"
)

// Scheduler runs the polling state machine
type Scheduler struct {
	fetcher   Fetcher
	parser    Parser
	store     ArticleStore
	health    HealthTracker
	cache     CacheWriter
	extractor Extractor

	feeds           []domain.FeedSource
	pollInterval    time.Duration
	retryInterval   time.Duration
	cleanupInterval time.Duration
	enrichInterval  time.Duration
	enrichRateLimit time.Duration
	minTextLength   int
	batchSize       int
	maxWorkers      int
	batchPause      time.Duration
	categories      []string

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	inCycle atomic.Bool
	state   atomic.Value

	mu        sync.Mutex
	lastMerge time.Time
	onMerge   func()

	refreshCh chan struct{}

	// enrichment attempts already made, pruned against the store during
	// cleanup so it cannot grow unbounded
	enrichMu sync.Mutex
	enriched map[string]bool
}

// Fetcher retrieves raw feed content
type Fetcher interface {
	Fetch(ctx context.Context, src domain.FeedSource) (fetcher.RawContent, error)
}

// Parser turns raw feed content into normalized articles
type Parser interface {
	Parse(body string, src domain.FeedSource) ([]domain.Article, error)
}

// ArticleStore is the merge target for parsed articles
type ArticleStore interface {
	Upsert(articles []domain.Article) int
	ByCategory(category string) []domain.Article
	NeedingEnrichment(minLen, limit int) []domain.Article
	SetSummary(link, summary string) bool
	Has(link string) bool
	Compact()
	Size() int
}

// HealthTracker observes fetch outcomes and gates retries
type HealthTracker interface {
	RecordOutcome(src domain.FeedSource, success bool, fetchErr error)
	DueForRetry() []domain.FeedSource
	ResetAll()
}

// CacheWriter is the optional durability layer, nil disables it
type CacheWriter interface {
	Get(ctx context.Context, category string) (articles []domain.Article, ok bool, err error)
	Put(ctx context.Context, category string, articles []domain.Article) error
}

// Extractor enriches thin summaries with full article text, nil
// disables enrichment
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Config holds scheduler configuration
type Config struct {
	Feeds           []domain.FeedSource
	PollInterval    time.Duration
	RetryInterval   time.Duration
	CleanupInterval time.Duration
	EnrichInterval  time.Duration
	EnrichRateLimit time.Duration
	MinTextLength   int
	BatchSize       int
	MaxWorkers      int
	BatchPause      time.Duration
}

// NewScheduler creates a scheduler instance. cache and extractor may be
// nil to disable write-through and enrichment.
func NewScheduler(f Fetcher, p Parser, st ArticleStore, h HealthTracker, cache CacheWriter, extractor Extractor, cfg Config) *Scheduler {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Minute
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 2 * time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 15 * time.Minute
	}
	if cfg.EnrichInterval == 0 {
		cfg.EnrichInterval = 5 * time.Minute
	}
	if cfg.EnrichRateLimit == 0 {
		cfg.EnrichRateLimit = time.Second
	}
	if cfg.MinTextLength == 0 {
		cfg.MinTextLength = 100
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 6
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.BatchPause == 0 {
		cfg.BatchPause = 2 * time.Second
	}

	s := &Scheduler{
		fetcher:         f,
		parser:          p,
		store:           st,
		health:          h,
		cache:           cache,
		extractor:       extractor,
		feeds:           orderByPriority(cfg.Feeds),
		pollInterval:    cfg.PollInterval,
		retryInterval:   cfg.RetryInterval,
		cleanupInterval: cfg.CleanupInterval,
		enrichInterval:  cfg.EnrichInterval,
		enrichRateLimit: cfg.EnrichRateLimit,
		minTextLength:   cfg.MinTextLength,
		batchSize:       cfg.BatchSize,
		maxWorkers:      cfg.MaxWorkers,
		batchPause:      cfg.BatchPause,
		categories:      categoriesOf(cfg.Feeds),
		refreshCh:       make(chan struct{}, 1),
		enriched:        map[string]bool{},
	}
	s.state.Store(StateIdle)
	return s
}

// Start begins the scheduler workers
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.cache != nil {
		s.warmStart(ctx)
	}

	s.wg.Add(1)
	go s.pollWorker(ctx)

	s.wg.Add(1)
	go s.retryWorker(ctx)

	s.wg.Add(1)
	go s.cleanupWorker(ctx)

	if s.extractor != nil {
		s.wg.Add(1)
		go s.enrichmentWorker(ctx)
	}

	lgr.Printf("[INFO] scheduler started: poll %v, retry sweep %v, cleanup %v, %d feeds",
		s.pollInterval, s.retryInterval, s.cleanupInterval, len(s.feeds))
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// State returns the current cycle state
func (s *Scheduler) State() string {
	return s.state.Load().(string)
}

// LastMerge returns when a poll cycle last merged articles
func (s *Scheduler) LastMerge() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMerge
}

// OnMerge registers a callback invoked after each completed cycle.
// Must be set before Start.
func (s *Scheduler) OnMerge(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMerge = fn
}

// TriggerRefresh requests a full refresh: retry ceilings are reset and
// a poll cycle is scheduled. No-op when a refresh is already pending.
func (s *Scheduler) TriggerRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// pollWorker runs full poll cycles on the poll interval and on refresh
// requests
func (s *Scheduler) pollWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// run immediately on start
	s.pollCycle(ctx, s.feeds)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollCycle(ctx, s.feeds)
		case <-s.refreshCh:
			lgr.Printf("[INFO] full refresh requested")
			s.health.ResetAll()
			s.pollCycle(ctx, s.feeds)
		}
	}
}

// retryWorker re-attempts only failed feeds between full polls
func (s *Scheduler) retryWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due := s.health.DueForRetry()
			if len(due) == 0 {
				continue
			}
			lgr.Printf("[INFO] retrying %d failed feeds", len(due))
			s.pollCycle(ctx, orderByPriority(due))
		}
	}
}

// cleanupWorker periodically reclaims store slack and prunes the
// enrichment bookkeeping
func (s *Scheduler) cleanupWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.Compact()
			s.pruneEnriched()
			lgr.Printf("[DEBUG] cleanup pass done, %d articles stored", s.store.Size())
		}
	}
}

// pollCycle runs one full cycle over the given feeds. A cycle already
// in flight makes the request a no-op.
func (s *Scheduler) pollCycle(ctx context.Context, feeds []domain.FeedSource) {
	if !s.inCycle.CompareAndSwap(false, true) {
		lgr.Printf("[DEBUG] poll requested while a cycle is in flight, skipped")
		return
	}
	defer s.inCycle.Store(false)
	defer s.state.Store(StateIdle)

	started := time.Now()
	s.state.Store(StateBatching)
	batches := partition(feeds, s.batchSize)

	totalNew := 0
	for i, batch := range batches {
		if ctx.Err() != nil {
			return
		}

		s.state.Store(StateFetching)
		outcomes := s.fetchBatch(ctx, batch)

		s.state.Store(StateMerging)
		totalNew += s.mergeOutcomes(ctx, outcomes)

		// politeness pause between batches, not after the last one
		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.batchPause):
			}
		}
	}

	s.mu.Lock()
	s.lastMerge = time.Now()
	fn := s.onMerge
	s.mu.Unlock()
	if fn != nil && totalNew > 0 {
		fn()
	}

	lgr.Printf("[INFO] poll cycle done in %v: %d feeds, %d new articles", time.Since(started).Round(time.Millisecond), len(feeds), totalNew)
}

// outcome is one feed's settled result within a batch
type outcome struct {
	src      domain.FeedSource
	articles []domain.Article
	err      error
}

// fetchBatch runs fetch+parse for every feed in the batch concurrently.
// One feed's failure never aborts the group, all outcomes settle.
func (s *Scheduler) fetchBatch(ctx context.Context, batch []domain.FeedSource) []outcome {
	outcomes := make([]outcome, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)

	for i, src := range batch {
		g.Go(func() error {
			outcomes[i] = s.processFeed(gctx, src)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures live in outcomes

	return outcomes
}

// processFeed fetches and parses a single feed
func (s *Scheduler) processFeed(ctx context.Context, src domain.FeedSource) outcome {
	raw, err := s.fetcher.Fetch(ctx, src)
	if err != nil {
		lgr.Printf("[WARN] fetch failed for %s: %v", src.Name, err)
		return outcome{src: src, err: err}
	}

	articles, err := s.parser.Parse(raw.Body, src)
	if err != nil {
		// malformed content counts as a fetch failure for health
		lgr.Printf("[WARN] parse failed for %s: %v", src.Name, err)
		return outcome{src: src, err: err}
	}

	return outcome{src: src, articles: articles}
}

// mergeOutcomes upserts parsed articles and records every outcome with
// the health tracker. Returns the number of new articles.
func (s *Scheduler) mergeOutcomes(ctx context.Context, outcomes []outcome) int {
	added := 0
	perCategory := map[string][]domain.Article{}

	for _, o := range outcomes {
		s.health.RecordOutcome(o.src, o.err == nil, o.err)
		if o.err != nil {
			continue
		}
		added += s.store.Upsert(o.articles)
		for _, a := range o.articles {
			perCategory[a.Category] = append(perCategory[a.Category], a)
		}
	}

	if s.cache != nil && added > 0 {
		go s.writeThrough(ctx, perCategory)
	}

	return added
}

// writeThrough posts the freshly merged categories to the cache
// service. Failures are logged, the cache is never a hard dependency.
func (s *Scheduler) writeThrough(ctx context.Context, perCategory map[string][]domain.Article) {
	for category := range perCategory {
		// post the store's full current view so the snapshot stays sorted
		// and bounded the same way the store is
		articles := s.store.ByCategory(category)
		if err := s.cache.Put(ctx, category, articles); err != nil {
			lgr.Printf("[WARN] cache write-through failed for %s: %v", category, err)
		}
	}
}

// warmStart seeds the store from fresh cache snapshots before the
// first poll
func (s *Scheduler) warmStart(ctx context.Context) {
	seeded := 0
	for _, category := range s.categories {
		articles, ok, err := s.cache.Get(ctx, category)
		if err != nil || !ok {
			continue
		}
		seeded += s.store.Upsert(articles)
	}
	if seeded > 0 {
		lgr.Printf("[INFO] warm start seeded %d articles from cache", seeded)
	}
}

// orderByPriority returns feeds with high priority first, preserving
// the incoming order within each priority
func orderByPriority(feeds []domain.FeedSource) []domain.FeedSource {
	res := make([]domain.FeedSource, 0, len(feeds))
	for _, f := range feeds {
		if f.Priority == domain.PriorityHigh {
			res = append(res, f)
		}
	}
	for _, f := range feeds {
		if f.Priority != domain.PriorityHigh {
			res = append(res, f)
		}
	}
	return res
}

// partition splits feeds into fixed-size batches
func partition(feeds []domain.FeedSource, size int) [][]domain.FeedSource {
	var res [][]domain.FeedSource
	for start := 0; start < len(feeds); start += size {
		end := start + size
		if end > len(feeds) {
			end = len(feeds)
		}
		res = append(res, feeds[start:end])
	}
	return res
}

// categoriesOf returns the distinct categories of the feed table
func categoriesOf(feeds []domain.FeedSource) []string {
	seen := map[string]bool{}
	var res []string
	for _, f := range feeds {
		if !seen[f.Category] {
			seen[f.Category] = true
			res = append(res, f.Category)
		}
	}
	return res
}
