// Package cache implements the companion cache service: durable
// per-category article snapshots with TTL staleness, plus the HTTP API
// and the client the pipeline uses to read and write through it.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/aipulse/pulse/pkg/domain"
)

// ErrMiss reports that no snapshot exists for the category
var ErrMiss = errors.New("cache miss")

// ErrStale reports that the snapshot exists but is past its TTL. Treated
// as a miss by callers, never as an error condition.
var ErrStale = errors.New("cache stale")

var categoryRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// FileStore persists one JSON document per category. Writes go through a
// temp file and rename so a crash can never leave a half-written
// snapshot, and writes to the same category are serialized.
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &FileStore{
		dir:   dir,
		ttl:   ttl,
		now:   time.Now,
		locks: map[string]*sync.Mutex{},
	}, nil
}

// Get returns the category snapshot. ErrStale when past the TTL, ErrMiss
// when absent; partial or corrupt data is never returned.
func (f *FileStore) Get(category string) (domain.CacheSnapshot, error) {
	snapshot, err := f.read(category)
	if err != nil {
		return domain.CacheSnapshot{}, err
	}
	if f.isExpired(snapshot) {
		return domain.CacheSnapshot{}, ErrStale
	}
	return snapshot, nil
}

// GetAll returns every fresh snapshot keyed by category
func (f *FileStore) GetAll() (map[string]domain.CacheSnapshot, error) {
	categories, err := f.categories()
	if err != nil {
		return nil, err
	}

	res := map[string]domain.CacheSnapshot{}
	for _, category := range categories {
		snapshot, err := f.Get(category)
		if err != nil {
			continue // stale and missing snapshots are simply not fresh
		}
		res[category] = snapshot
	}
	return res, nil
}

// Set merges articles into the category snapshot: merge first, then
// deduplicate by link+title+date, then sort, then persist. Repeating an
// identical write is a no-op on content. Returns the merged article
// count and how many duplicates the merge removed.
func (f *FileStore) Set(category string, articles []domain.Article) (count, duplicatesRemoved int, err error) {
	if !categoryRe.MatchString(category) {
		return 0, 0, fmt.Errorf("invalid category %q", category)
	}

	lock := f.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	existing, rerr := f.read(category)
	if rerr != nil && !errors.Is(rerr, ErrMiss) {
		return 0, 0, rerr
	}

	merged := make([]domain.Article, 0, len(existing.Articles)+len(articles))
	merged = append(merged, existing.Articles...)
	merged = append(merged, articles...)

	deduped := dedupArticles(merged)
	duplicatesRemoved = len(merged) - len(deduped)

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].PublishedAt.After(deduped[j].PublishedAt)
	})

	snapshot := domain.CacheSnapshot{
		Articles:  deduped,
		Timestamp: f.now(),
		Count:     len(deduped),
	}
	if err := f.write(category, snapshot); err != nil {
		return 0, 0, err
	}

	lgr.Printf("[DEBUG] cache set %s: %d articles, %d duplicates removed", category, len(deduped), duplicatesRemoved)
	return len(deduped), duplicatesRemoved, nil
}

// Refresh invalidates the category so the next read misses
func (f *FileStore) Refresh(category string) error {
	lock := f.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	snapshot, err := f.read(category)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil // nothing to invalidate
		}
		return err
	}

	// zero timestamp makes the snapshot permanently stale while keeping
	// the data around for the next merge
	snapshot.Timestamp = time.Time{}
	return f.write(category, snapshot)
}

// Clear removes the category snapshot, or every snapshot when category
// is empty
func (f *FileStore) Clear(category string) error {
	if category == "" {
		categories, err := f.categories()
		if err != nil {
			return err
		}
		for _, c := range categories {
			if err := f.Clear(c); err != nil {
				return err
			}
		}
		return nil
	}

	lock := f.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(f.path(category)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot %s: %w", category, err)
	}
	return nil
}

// EntryStatus describes one category for the status surface
type EntryStatus struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
	AgeMs     int64     `json:"age"`
	Expired   bool      `json:"expired"`
}

// Status reports count, age and freshness per category
func (f *FileStore) Status() (map[string]EntryStatus, error) {
	categories, err := f.categories()
	if err != nil {
		return nil, err
	}

	res := map[string]EntryStatus{}
	for _, category := range categories {
		snapshot, err := f.read(category)
		if err != nil {
			continue
		}
		res[category] = EntryStatus{
			Count:     snapshot.Count,
			Timestamp: snapshot.Timestamp,
			AgeMs:     f.now().Sub(snapshot.Timestamp).Milliseconds(),
			Expired:   f.isExpired(snapshot),
		}
	}
	return res, nil
}

func (f *FileStore) isExpired(snapshot domain.CacheSnapshot) bool {
	return f.now().Sub(snapshot.Timestamp) > f.ttl
}

func (f *FileStore) path(category string) string {
	return filepath.Join(f.dir, category+".json")
}

func (f *FileStore) categoryLock(category string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[category] == nil {
		f.locks[category] = &sync.Mutex{}
	}
	return f.locks[category]
}

func (f *FileStore) categories() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	var res []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		res = append(res, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(res)
	return res, nil
}

func (f *FileStore) read(category string) (domain.CacheSnapshot, error) {
	if !categoryRe.MatchString(category) {
		return domain.CacheSnapshot{}, fmt.Errorf("invalid category %q", category)
	}
	data, err := os.ReadFile(f.path(category)) //nolint:gosec // path is built from a validated category name
	if err != nil {
		if os.IsNotExist(err) {
			return domain.CacheSnapshot{}, ErrMiss
		}
		return domain.CacheSnapshot{}, fmt.Errorf("read snapshot %s: %w", category, err)
	}

	var snapshot domain.CacheSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// corrupt snapshot is a miss, not served partially
		lgr.Printf("[WARN] corrupt snapshot for %s, treating as miss: %v", category, err)
		return domain.CacheSnapshot{}, ErrMiss
	}
	return snapshot, nil
}

// write replaces the whole snapshot file atomically
func (f *FileStore) write(category string, snapshot domain.CacheSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", category, err)
	}

	tmp, err := os.CreateTemp(f.dir, category+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(category)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename snapshot %s: %w", category, err)
	}
	return nil
}

// dedupArticles removes duplicates by link+title+date keeping the first
// occurrence, which carries the previously persisted version
func dedupArticles(articles []domain.Article) []domain.Article {
	seen := map[string]bool{}
	res := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		key := a.CanonicalLink + "|" + a.Title + "|" + a.PublishedAt.UTC().Format(time.RFC3339)
		if seen[key] {
			continue
		}
		seen[key] = true
		res = append(res, a)
	}
	return res
}
