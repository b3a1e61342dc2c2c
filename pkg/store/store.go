// Package store keeps the in-memory, size-bounded article collection:
// deduplicated by canonical link, sorted by publication time, filterable
// and paginated for the serving layer.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/aipulse/pulse/pkg/domain"
)

// CategoryAll is the sentinel meaning "no category filter"
const CategoryAll = "all"

// Store is the bounded article collection. First-seen articles win on
// dedup; the oldest excess is trimmed when the bound is exceeded.
type Store struct {
	maxArticles int

	mu       sync.RWMutex
	articles []domain.Article
	byLink   map[string]struct{}
}

// New creates a store bounded to maxArticles
func New(maxArticles int) *Store {
	if maxArticles < 1 {
		maxArticles = 500
	}
	return &Store{
		maxArticles: maxArticles,
		byLink:      map[string]struct{}{},
	}
}

// Upsert merges incoming articles into the store. Articles whose canonical
// link is already present are dropped (first-seen is canonical), the rest
// are inserted, the collection re-sorted and trimmed to the bound. Returns
// the number of genuinely new articles.
func (s *Store) Upsert(articles []domain.Article) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, a := range articles {
		if a.CanonicalLink == "" {
			continue
		}
		if _, exists := s.byLink[a.CanonicalLink]; exists {
			continue
		}
		s.byLink[a.CanonicalLink] = struct{}{}
		s.articles = append(s.articles, a)
		added++
	}

	if added == 0 {
		return 0
	}

	sortArticles(s.articles)

	if len(s.articles) > s.maxArticles {
		trimmed := s.articles[s.maxArticles:]
		for _, a := range trimmed {
			delete(s.byLink, a.CanonicalLink)
		}
		s.articles = s.articles[:s.maxArticles]
		lgr.Printf("[DEBUG] store trimmed %d oldest articles", len(trimmed))
	}

	return added
}

// Query returns one page of articles matching the category and search
// term. The sentinel category "all" (or empty) disables category
// filtering; a page beyond the end clamps to the last valid page.
func (s *Store) Query(category, searchTerm string, page, pageSize int) []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pageSize < 1 {
		pageSize = 10
	}
	if page < 1 {
		page = 1
	}

	filtered := s.filter(category, searchTerm)
	if len(filtered) == 0 {
		return []domain.Article{}
	}

	lastPage := (len(filtered) + pageSize - 1) / pageSize
	if page > lastPage {
		page = lastPage
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	result := make([]domain.Article, end-start)
	copy(result, filtered[start:end])
	return result
}

// Count returns how many articles match the category and search term
func (s *Store) Count(category, searchTerm string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filter(category, searchTerm))
}

// Size returns the total number of stored articles
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// Categories returns the distinct categories currently present
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var res []string
	for _, a := range s.articles {
		if !seen[a.Category] {
			seen[a.Category] = true
			res = append(res, a.Category)
		}
	}
	sort.Strings(res)
	return res
}

// ByCategory returns all stored articles for one category, newest first
func (s *Store) ByCategory(category string) []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := s.filter(category, "")
	result := make([]domain.Article, len(filtered))
	copy(result, filtered)
	return result
}

// Has reports whether an article with the canonical link is stored
func (s *Store) Has(link string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byLink[link]
	return ok
}

// NeedingEnrichment returns up to limit articles whose summary is
// shorter than minLen, newest first
func (s *Store) NeedingEnrichment(minLen, limit int) []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]domain.Article, 0, limit)
	for _, a := range s.articles {
		if len(a.Summary) >= minLen {
			continue
		}
		res = append(res, a)
		if len(res) == limit {
			break
		}
	}
	return res
}

// SetSummary replaces the summary of the article with the canonical
// link. The preview keeps its original teaser. Returns false when the
// article is no longer stored.
func (s *Store) SetSummary(link, summary string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byLink[link]; !ok {
		return false
	}
	for i := range s.articles {
		if s.articles[i].CanonicalLink == link {
			s.articles[i].Summary = summary
			return true
		}
	}
	return false
}

// Compact reallocates the backing array so trimmed articles do not keep
// the old array alive. Called from the periodic cleanup pass.
func (s *Store) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()

	compacted := make([]domain.Article, len(s.articles))
	copy(compacted, s.articles)
	s.articles = compacted
}

// filter applies category and search filters preserving sort order.
// Caller must hold at least the read lock.
func (s *Store) filter(category, searchTerm string) []domain.Article {
	noCategory := category == "" || category == CategoryAll
	term := strings.ToLower(strings.TrimSpace(searchTerm))

	res := make([]domain.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if !noCategory && a.Category != category {
			continue
		}
		if term != "" && !matchesTerm(a, term) {
			continue
		}
		res = append(res, a)
	}
	return res
}

// matchesTerm checks title, summary and source case-insensitively
func matchesTerm(a domain.Article, term string) bool {
	return strings.Contains(strings.ToLower(a.Title), term) ||
		strings.Contains(strings.ToLower(a.Summary), term) ||
		strings.Contains(strings.ToLower(a.SourceName), term)
}

// sortArticles orders newest first; among identical timestamps the ones
// with a source-provided date sort ahead of defaulted ones
func sortArticles(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		}
		return articles[i].DateKnown && !articles[j].DateKnown
	})
}
