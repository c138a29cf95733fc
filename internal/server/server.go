// Package server provides the HTTP API for the rules search service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/boardgamelab/rulesearch/internal/config"
	"github.com/boardgamelab/rulesearch/internal/ingest"
	"github.com/boardgamelab/rulesearch/internal/query"
	"github.com/boardgamelab/rulesearch/internal/storage"
)

// Server is the HTTP server for the rules search API.
type Server struct {
	engine   *query.Engine
	pipeline *ingest.Pipeline
	store    storage.CorpusStore
	config   *config.ServerConfig
	search   *config.SearchConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *query.Engine,
	pipeline *ingest.Pipeline,
	store storage.CorpusStore,
	cfg *config.ServerConfig,
	searchCfg *config.SearchConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		pipeline: pipeline,
		store:    store,
		config:   cfg,
		search:   searchCfg,
		logger:   logger,
	}
}

// Routes builds the HTTP router. Exposed for handler tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/", s.handleRoot)
	r.Post("/query", s.handleQuery)
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/backfill", s.handleBackfill)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
