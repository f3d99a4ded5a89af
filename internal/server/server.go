// Package server provides the stateless JSON API for OzLaw. Callers own the conversation
// history and send it with every question.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/ozlaw/internal/config"
	"github.com/hyperjump/ozlaw/internal/indexer"
	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/internal/rag"
	"github.com/hyperjump/ozlaw/internal/storage"
	"go.uber.org/zap"
)

// Answerer answers a question given the caller's history.
type Answerer interface {
	RunK(ctx context.Context, question string, history models.History, k int) (*rag.Result, error)
}

// Ingester ingests files and directories into the vector store.
type Ingester interface {
	IngestFile(ctx context.Context, path string, allowedExts []string) (*indexer.FileResult, error)
	IngestDirectory(ctx context.Context, dir string, allowedExts []string) (*models.IngestReport, error)
}

// Counter reports the number of entries in the vector store.
type Counter interface {
	Count() int
}

// Server is the HTTP server for the OzLaw API.
type Server struct {
	answerer Answerer
	ingester Ingester
	registry storage.Storage // optional
	store    Counter         // optional
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. registry and store may be nil;
// status and document listing then report less.
func NewServer(
	answerer Answerer,
	ingester Ingester,
	registry storage.Storage,
	store Counter,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		answerer: answerer,
		ingester: ingester,
		registry: registry,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/answer", s.handleAnswer)
	r.Post("/api/v1/ingest", s.handleIngest)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
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
