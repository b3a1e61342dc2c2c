// Package proxy maintains the scored table of CORS relay endpoints and
// picks one per fetch attempt, adapting scores from observed outcomes.
package proxy

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/aipulse/pulse/pkg/domain"
)

// Options tunes selection and scoring. The adjustment constants are
// starting defaults carried over from observed behavior, not invariants.
type Options struct {
	TopK             int           // size of the preferred subset, default 3
	RankTTL          time.Duration // how long a computed ranking is reused, default 30s
	SuccessBump      float64       // reliability increment on success, default 0.02
	FailureDrop      float64       // reliability decrement on failure, default 0.05
	ReliabilityFloor float64       // lowest reliability, endpoints can recover, default 0.1
	LatencyWeight    float64       // weight of the previous latency estimate, default 0.7
	LatencyCeilingMs float64       // one slow sample can't poison the estimate, default 10000
	RankDecay        float64       // geometric weight decay by rank, default 0.5
}

func (o *Options) setDefaults() {
	if o.TopK == 0 {
		o.TopK = 3
	}
	if o.RankTTL == 0 {
		o.RankTTL = 30 * time.Second
	}
	if o.SuccessBump == 0 {
		o.SuccessBump = 0.02
	}
	if o.FailureDrop == 0 {
		o.FailureDrop = 0.05
	}
	if o.ReliabilityFloor == 0 {
		o.ReliabilityFloor = 0.1
	}
	if o.LatencyWeight == 0 {
		o.LatencyWeight = 0.7
	}
	if o.LatencyCeilingMs == 0 {
		o.LatencyCeilingMs = 10000
	}
	if o.RankDecay == 0 {
		o.RankDecay = 0.5
	}
}

// Selector owns the endpoint table. Endpoints are re-ranked lazily and
// never removed.
type Selector struct {
	opts Options
	now  func() time.Time

	mu        sync.Mutex
	endpoints []*domain.ProxyEndpoint
	ranked    []*domain.ProxyEndpoint
	rankedAt  time.Time
}

// NewSelector creates a selector seeded from the configured endpoint table
func NewSelector(endpoints []domain.ProxyEndpoint, opts Options) *Selector {
	opts.setDefaults()
	s := &Selector{opts: opts, now: time.Now}
	for i := range endpoints {
		e := endpoints[i]
		s.endpoints = append(s.endpoints, &e)
	}
	return s
}

// Select picks one endpoint using rank-weighted random sampling from the
// current top-K subset. Endpoints whose template appears in tried are
// excluded, unless that would exclude the whole subset - then the tried
// set is effectively reset and selection continues from the full subset.
// Returns a copy; outcomes are reported back by template.
func (s *Selector) Select(tried map[string]bool) (domain.ProxyEndpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.endpoints) == 0 {
		return domain.ProxyEndpoint{}, false
	}

	top := s.topRanked()

	candidates := make([]*domain.ProxyEndpoint, 0, len(top))
	for _, e := range top {
		if !tried[e.Template] {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		// everything tried already, start over rather than giving up
		candidates = top
	}

	// geometric weights: the fastest candidate is exponentially more
	// likely but never the only one picked
	total := 0.0
	weights := make([]float64, len(candidates))
	w := 1.0
	for i := range candidates {
		weights[i] = w
		total += w
		w *= s.opts.RankDecay
	}

	r := rand.Float64() * total //nolint:gosec // non-cryptographic randomness is fine for load spreading
	for i, e := range candidates {
		r -= weights[i]
		if r <= 0 {
			return *e, true
		}
	}
	return *candidates[len(candidates)-1], true
}

// ReportOutcome adjusts the endpoint's reliability and latency estimate
// after an attempt through it
func (s *Selector) ReportOutcome(template string, success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endpoint *domain.ProxyEndpoint
	for _, e := range s.endpoints {
		if e.Template == template {
			endpoint = e
			break
		}
	}
	if endpoint == nil {
		return
	}

	if success {
		endpoint.Reliability += s.opts.SuccessBump
		if endpoint.Reliability > 1.0 {
			endpoint.Reliability = 1.0
		}
		sample := float64(latency.Milliseconds())
		if sample > s.opts.LatencyCeilingMs {
			sample = s.opts.LatencyCeilingMs
		}
		endpoint.ObservedLatencyMs = s.opts.LatencyWeight*endpoint.ObservedLatencyMs + (1-s.opts.LatencyWeight)*sample
	} else {
		endpoint.Reliability -= s.opts.FailureDrop
		if endpoint.Reliability < s.opts.ReliabilityFloor {
			endpoint.Reliability = s.opts.ReliabilityFloor
		}
		lgr.Printf("[DEBUG] proxy %s degraded, reliability %.2f", template, endpoint.Reliability)
	}

	// force re-rank on next selection
	s.rankedAt = time.Time{}
}

// Snapshot returns a copy of the current endpoint table, best first
func (s *Selector) Snapshot() []domain.ProxyEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]domain.ProxyEndpoint, 0, len(s.endpoints))
	sorted := make([]*domain.ProxyEndpoint, len(s.endpoints))
	copy(sorted, s.endpoints)
	sortEndpoints(sorted)
	for _, e := range sorted {
		res = append(res, *e)
	}
	return res
}

// topRanked returns the cached top-K subset, recomputing when stale.
// Caller must hold the lock.
func (s *Selector) topRanked() []*domain.ProxyEndpoint {
	if s.ranked != nil && s.now().Sub(s.rankedAt) < s.opts.RankTTL {
		return s.ranked
	}

	sorted := make([]*domain.ProxyEndpoint, len(s.endpoints))
	copy(sorted, s.endpoints)
	sortEndpoints(sorted)

	k := s.opts.TopK
	if k > len(sorted) {
		k = len(sorted)
	}
	s.ranked = sorted[:k]
	s.rankedAt = s.now()
	return s.ranked
}

// sortEndpoints orders by latency first, reliability second
func sortEndpoints(endpoints []*domain.ProxyEndpoint) {
	sort.SliceStable(endpoints, func(i, j int) bool {
		if endpoints[i].ObservedLatencyMs != endpoints[j].ObservedLatencyMs {
			return endpoints[i].ObservedLatencyMs < endpoints[j].ObservedLatencyMs
		}
		return endpoints[i].Reliability > endpoints[j].Reliability
	})
}
