package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/aipulse/pulse/pkg/cache"
	"github.com/aipulse/pulse/pkg/domain"
)

// CacheServer is the standalone cache service instance. It owns a file
// backed snapshot store and serves the cache API in front of it.
type CacheServer struct {
	store   *cache.FileStore
	listen  string
	timeout time.Duration
	version string
	debug   bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// NewCacheServer initializes a cache service instance
func NewCacheServer(st *cache.FileStore, listen string, timeout time.Duration, version string, debug bool) *CacheServer {
	s := &CacheServer{
		store:   st,
		listen:  listen,
		timeout: timeout,
		version: version,
		debug:   debug,
		router:  routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the cache service and handles graceful shutdown
func (s *CacheServer) Run(ctx context.Context) error {
	log.Printf("[INFO] starting cache service on %s", s.listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.listen,
		Handler:      s.router,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down cache service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] cache service shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("cache service error: %w", err)
	}

	return nil
}

// Handler exposes the router for tests
func (s *CacheServer) Handler() http.Handler { return s.router }

func (s *CacheServer) setupMiddleware() {
	s.router.Use(rest.AppInfo("pulse-cache", "aipulse", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(5 * 1024 * 1024)) // merge payloads carry full category snapshots
}

func (s *CacheServer) setupRoutes() {
	// exact patterns, the mux picks /api/cache/status over the
	// {category} wildcard on specificity
	s.router.HandleFunc("GET /api/cache/status", s.statusHandler)
	s.router.HandleFunc("GET /api/cache/{category}", s.getCategoryHandler)
	s.router.HandleFunc("GET /api/cache", s.getAllHandler)
	s.router.HandleFunc("POST /api/cache/{category}", s.setCategoryHandler)
	s.router.HandleFunc("POST /api/cache/{category}/refresh", s.refreshCategoryHandler)
	s.router.HandleFunc("DELETE /api/cache/{category}", s.clearCategoryHandler)
	s.router.HandleFunc("DELETE /api/cache", s.clearAllHandler)
}

// getCategoryHandler serves one category snapshot, reporting stale or
// missing entries as a miss
func (s *CacheServer) getCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")

	snapshot, err := s.store.Get(category)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) || errors.Is(err, cache.ErrStale) {
			renderJSON(w, r, http.StatusNotFound, map[string]interface{}{
				"success":   false,
				"fromCache": false,
			})
			return
		}
		log.Printf("[ERROR] cache get %s: %v", category, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success":   true,
		"data":      snapshot.Articles,
		"timestamp": snapshot.Timestamp,
		"fromCache": true,
	})
}

// getAllHandler serves every fresh snapshot keyed by category
func (s *CacheServer) getAllHandler(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.store.GetAll()
	if err != nil {
		log.Printf("[ERROR] cache get all: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    snapshots,
	})
}

// setCategoryHandler merges posted articles into the category snapshot
func (s *CacheServer) setCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")

	var req struct {
		Articles []domain.Article `json:"articles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	count, duplicatesRemoved, err := s.store.Set(category, req.Articles)
	if err != nil {
		log.Printf("[ERROR] cache set %s: %v", category, err)
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("cached %d articles for %s, %d duplicates removed", count, category, duplicatesRemoved),
	})
}

// refreshCategoryHandler invalidates a category so the next read misses
func (s *CacheServer) refreshCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")

	if err := s.store.Refresh(category); err != nil {
		log.Printf("[ERROR] cache refresh %s: %v", category, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("cache invalidated for %s", category),
	})
}

// clearCategoryHandler removes one category snapshot
func (s *CacheServer) clearCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category := r.PathValue("category")

	if err := s.store.Clear(category); err != nil {
		log.Printf("[ERROR] cache clear %s: %v", category, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("cache cleared for %s", category),
	})
}

// clearAllHandler removes every snapshot
func (s *CacheServer) clearAllHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(""); err != nil {
		log.Printf("[ERROR] cache clear all: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "cache cleared",
	})
}

// statusHandler reports per-category freshness
func (s *CacheServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.Status()
	if err != nil {
		log.Printf("[ERROR] cache status: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}

	renderJSON(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    status,
	})
}
