package domain

import "time"

// FeedKind discriminates how a feed source is fetched and parsed
type FeedKind string

// known feed kinds
const (
	KindRSS          FeedKind = "rss"
	KindAtom         FeedKind = "atom"
	KindJSON         FeedKind = "json"
	KindVideoChannel FeedKind = "video-channel"
)

// FeedPriority orders feeds within a polling cycle
type FeedPriority string

// known priorities, high-priority feeds are batched first
const (
	PriorityHigh   FeedPriority = "high"
	PriorityMedium FeedPriority = "medium"
)

// FeedSource describes one configured feed. Created at startup from the
// static configuration table and never mutated afterwards.
type FeedSource struct {
	Name     string       `yaml:"name" json:"name"`
	URL      string       `yaml:"url" json:"url"`
	Kind     FeedKind     `yaml:"kind" json:"kind"`
	Category string       `yaml:"category" json:"category"`
	Priority FeedPriority `yaml:"priority" json:"priority"`
}

// FeedHealth tracks per-feed fetch outcomes, keyed by FeedSource.URL
type FeedHealth struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastAttemptAt       time.Time `json:"last_attempt_at"`
	LastError           string    `json:"last_error,omitempty"`
}

// CategoryHealth accumulates per-category fetch statistics. It is a
// diagnostic signal only and never gates scheduling.
type CategoryHealth struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

// SuccessRatio returns the cumulative success ratio, 1.0 when nothing
// has been attempted yet
func (c CategoryHealth) SuccessRatio() float64 {
	if c.Attempts == 0 {
		return 1.0
	}
	return float64(c.Successes) / float64(c.Attempts)
}
