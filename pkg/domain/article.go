package domain

import "time"

// DefaultAuthor is used when a feed item carries no author information
const DefaultAuthor = "Editorial"

// Article is the normalized unit of content produced by the parser.
// CanonicalLink is the dedup key: two articles with the same link are the
// same article regardless of which source delivered them. Immutable once
// created, evicted only by the store's bounding policy.
type Article struct {
	Title         string    `json:"title"`
	CanonicalLink string    `json:"link"`
	Summary       string    `json:"summary"`
	Preview       string    `json:"preview"`
	PublishedAt   time.Time `json:"published_at"`
	// DateKnown is false when the source supplied no publish date and
	// PublishedAt was defaulted to fetch time. Known limitation: such
	// items sort as if they were published when first seen.
	DateKnown  bool   `json:"date_known"`
	Author     string `json:"author"`
	SourceName string `json:"source"`
	Category   string `json:"category"`
	ImageURL   string `json:"image_url,omitempty"`
	VideoURL   string `json:"video_url,omitempty"`
}

// CacheSnapshot is the per-category unit persisted by the cache service.
// Articles are always deduplicated and sorted before a snapshot is written.
type CacheSnapshot struct {
	Articles  []Article `json:"articles"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}
