// Package server exposes the HTTP API: document upload, search, library
// statistics, and health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oriondocs/orion/internal/errs"
	"github.com/oriondocs/orion/internal/library"
	"github.com/oriondocs/orion/internal/search"
	"github.com/oriondocs/orion/internal/upload"
)

// Config holds the HTTP server settings.
type Config struct {
	Bind string
	Port int

	// MaxRequestBytes caps the multipart request body. Slightly above the
	// upload cap so form overhead does not reject a maximal file.
	MaxRequestBytes int64
}

// Server routes API requests to the upload gate, search engine, and library
// repository. It is safe for concurrent use.
type Server struct {
	mu      sync.RWMutex
	config  Config
	router  *chi.Mux
	server  *http.Server
	logger  *slog.Logger
	gate    *upload.Gate
	engine  *search.Engine
	library *library.Repository
}

// NewServer creates the API server.
func NewServer(config Config, gate *upload.Gate, engine *search.Engine, repo *library.Repository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:  config,
		router:  chi.NewRouter(),
		logger:  logger,
		gate:    gate,
		engine:  engine,
		library: repo,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/query", s.handleQuery)
		r.Get("/library/{userID}/stats", s.handleLibraryStats)
		r.Get("/library/{userID}/documents", s.handleLibraryDocuments)
		r.Get("/algorithms", s.handleAlgorithms)
	})
}

// Handler returns the HTTP handler for testing purposes.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// Start starts the HTTP server and blocks until it is stopped.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)

	s.mu.Lock()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}
	server := s.server
	s.mu.Unlock()

	s.logger.Info("http server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error; %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown http server; %w", err)
	}
	return nil
}

// UploadResponse acknowledges an accepted document.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Size       int64  `json:"size"`
	MIMEType   string `json:"mime_type"`
	Queued     bool   `json:"queued"`
}

// handleUpload accepts a multipart form with fields "file", "user_id", and
// optional "description".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.config.MaxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	userID := r.FormValue("user_id")
	description := r.FormValue("description")

	result, err := s.gate.Accept(file, header.Filename, userID, description)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(UploadResponse{
		DocumentID: result.DocumentID,
		Size:       result.Size,
		MIMEType:   result.MIMEType,
		Queued:     true,
	})
}

// QueryRequest is the search request body.
type QueryRequest struct {
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
	Algorithm string `json:"algorithm"`
	Limit     int    `json:"limit"`
}

// handleQuery runs a search over the user's library.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Algorithm == "" {
		req.Algorithm = "cosine"
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	resp, err := s.engine.Search(r.Context(), req.UserID, req.Query, req.Algorithm, req.Limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// handleLibraryStats returns the user's library statistics.
func (s *Server) handleLibraryStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	stats, err := s.library.Stats(chi.URLParam(r, "userID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

// DocumentsResponse lists a user's persisted documents.
type DocumentsResponse struct {
	Documents []library.Document `json:"documents"`
}

// handleLibraryDocuments returns the user's persisted documents.
func (s *Server) handleLibraryDocuments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	docs, err := s.library.Documents(chi.URLParam(r, "userID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(DocumentsResponse{Documents: docs})
}

// AlgorithmsResponse lists the supported search algorithms.
type AlgorithmsResponse struct {
	Algorithms []string `json:"algorithms"`
}

// handleAlgorithms returns the static algorithm list.
func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(AlgorithmsResponse{Algorithms: search.Algorithms})
}

// handleHealthz is the liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// writeDomainError maps domain error kinds onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, errs.ErrInvalidUser),
		errors.Is(err, errs.ErrUnsupportedType),
		errors.Is(err, errs.ErrUnknownAlgorithm),
		errors.Is(err, errs.ErrInvalidLimit):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrEmptyLibrary):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrEmbeddingFailed),
		errors.Is(err, errs.ErrProviderUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSONError(w, status, err.Error())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}
