// Package server provides the HTTP surfaces: the aggregator read API
// and the cache service API.
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

	"github.com/aipulse/pulse/pkg/domain"
)

// Server is the aggregator's read API instance
type Server struct {
	config    ConfigProvider
	articles  ArticleSource
	health    HealthSource
	proxies   ProxySource
	scheduler Scheduler
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// ArticleSource reads from the in-memory article store
type ArticleSource interface {
	Query(category, searchTerm string, page, pageSize int) []domain.Article
	Count(category, searchTerm string) int
	Categories() []string
}

// HealthSource exposes feed and category health snapshots
type HealthSource interface {
	FeedHealth() map[string]domain.FeedHealth
	CategoryHealth() map[string]domain.CategoryHealth
	UnhealthyCategories() []string
}

// ProxySource exposes the current relay endpoint scores
type ProxySource interface {
	Snapshot() []domain.ProxyEndpoint
}

// Scheduler triggers on-demand pipeline runs
type Scheduler interface {
	TriggerRefresh()
	State() string
	LastMerge() time.Time
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
	GetStoreConfig() (maxArticles, pageSize int)
}

// New initializes a read API server instance
func New(cfg ConfigProvider, articles ArticleSource, health HealthSource, proxies ProxySource, scheduler Scheduler, version string, debug bool) *Server {
	s := &Server{
		config:    cfg,
		articles:  articles,
		health:    health,
		proxies:   proxies,
		scheduler: scheduler,
		version:   version,
		debug:     debug,
		router:    routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler { return s.router }

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("pulse", "aipulse", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /articles", s.articlesHandler)
		r.HandleFunc("GET /health", s.healthHandler)
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("POST /refresh", s.refreshHandler)
	})
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]interface{}{"success": false, "error": errMsg})
}
