package scheduler

import (
	"context"
	"time"

	"github.com/go-pkgz/lgr"
)

// enrichmentBatch bounds how many thin articles one sweep processes
const enrichmentBatch = 10

// enrichmentWorker periodically replaces thin summaries with extracted
// full text
func (s *Scheduler) enrichmentWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.enrichInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enrichPending(ctx)
		}
	}
}

// enrichPending extracts full text for stored articles whose summary is
// too thin, one at a time with a rate limit between extractions
func (s *Scheduler) enrichPending(ctx context.Context) {
	candidates := s.store.NeedingEnrichment(s.minTextLength, enrichmentBatch)
	if len(candidates) == 0 {
		return
	}

	processed := 0
	for _, a := range candidates {
		if ctx.Err() != nil {
			return
		}
		if s.alreadyTried(a.CanonicalLink) {
			continue
		}
		s.markTried(a.CanonicalLink)

		text, err := s.extractor.Extract(ctx, a.CanonicalLink)
		if err != nil {
			lgr.Printf("[DEBUG] enrichment failed for %s: %v", a.CanonicalLink, err)
		} else if s.store.SetSummary(a.CanonicalLink, text) {
			processed++
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.enrichRateLimit):
		}
	}

	if processed > 0 {
		lgr.Printf("[INFO] enriched %d articles", processed)
	}
}

func (s *Scheduler) alreadyTried(link string) bool {
	s.enrichMu.Lock()
	defer s.enrichMu.Unlock()
	return s.enriched[link]
}

func (s *Scheduler) markTried(link string) {
	s.enrichMu.Lock()
	defer s.enrichMu.Unlock()
	s.enriched[link] = true
}

// pruneEnriched drops bookkeeping for articles the store no longer holds
func (s *Scheduler) pruneEnriched() {
	s.enrichMu.Lock()
	defer s.enrichMu.Unlock()
	for link := range s.enriched {
		if !s.store.Has(link) {
			delete(s.enriched, link)
		}
	}
}
