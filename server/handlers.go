package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aipulse/pulse/pkg/domain"
	"github.com/aipulse/pulse/pkg/store"
)

var errInvalidPage = errors.New("invalid page parameter")

// articlesHandler serves the paginated article listing with optional
// category and search filters
func (s *Server) articlesHandler(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = store.CategoryAll
	}
	search := r.URL.Query().Get("search")

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 1 {
			renderError(w, r, errInvalidPage, http.StatusBadRequest)
			return
		}
		page = v
	}

	_, pageSize := s.config.GetStoreConfig()
	articles := s.articles.Query(category, search, page, pageSize)
	if articles == nil {
		articles = []domain.Article{}
	}
	total := s.articles.Count(category, search)

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success":  true,
		"data":     articles,
		"total":    total,
		"page":     page,
		"category": category,
	})
}

// healthHandler reports per-feed and per-category health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success":    true,
		"feeds":      s.health.FeedHealth(),
		"categories": s.health.CategoryHealth(),
		"unhealthy":  s.health.UnhealthyCategories(),
		"proxies":    s.proxies.Snapshot(),
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"version":    s.version,
		"time":       time.Now().UTC(),
		"state":      s.scheduler.State(),
		"last_merge": s.scheduler.LastMerge(),
		"articles":   s.articles.Count(store.CategoryAll, ""),
		"categories": s.articles.Categories(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// refreshHandler triggers an immediate pipeline run. The run happens in
// the background, the handler returns as soon as it is scheduled.
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	s.scheduler.TriggerRefresh()
	renderJSON(w, r, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "refresh scheduled",
	})
}
