// Package api provides HTTP and WebSocket endpoints for the price engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/history"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/jobs"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/metrics"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/search"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// PriceService is the search orchestrator as seen by the API.
type PriceService interface {
	SearchPrice(ctx context.Context, q sources.Query) (*search.Result, error)
	InvalidatePriceCache(ctx context.Context, itemName string, itemType sources.ItemType, dosage string) error
	InvalidateItemType(ctx context.Context, itemType sources.ItemType) error
	Strategies() []string
}

// JobSubmitter accepts background price jobs.
type JobSubmitter interface {
	Submit(req jobs.Request) (uuid.UUID, error)
}

// HistoryReader lists recent searches.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options configures a Server. Jobs, History and Stream are optional.
type Options struct {
	Addr         string
	Service      PriceService
	Jobs         JobSubmitter
	History      HistoryReader
	Stream       *StreamHub
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *logging.Logger
}

// Server represents the HTTP API server.
type Server struct {
	addr         string
	service      PriceService
	jobs         JobSubmitter
	history      HistoryReader
	stream       *StreamHub
	readTimeout  time.Duration
	writeTimeout time.Duration
	server       *http.Server
	logger       *logging.Logger
}

// NewServer creates a new HTTP API server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoopLogger()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Minute
	}
	return &Server{
		addr:         opts.Addr,
		service:      opts.Service,
		jobs:         opts.Jobs,
		history:      opts.History,
		stream:       opts.Stream,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		logger:       opts.Logger.With("component", "api"),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Route("/v1/prices", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Delete("/cache", s.handleInvalidate)
		r.Delete("/cache/{itemType}", s.handleInvalidateType)
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/history", s.handleHistory)
	})
	if s.stream != nil {
		r.Get("/ws", s.stream.ServeHTTP)
	}
	return r
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// instrument records request metrics labelled by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHTTPRequest(route, strconv.Itoa(status), time.Since(start))
	})
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"strategies": s.service.Strategies(),
	})
}

// handleSearch runs a price search for the query string item.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	itemType, err := sources.ParseItemType(params.Get("type"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}

	q := sources.Query{
		ItemName:        params.Get("name"),
		ItemType:        itemType,
		Dosage:          params.Get("dosage"),
		MeasurementUnit: params.Get("unit"),
	}
	result, err := s.service.SearchPrice(r.Context(), q)
	switch {
	case errors.Is(err, search.ErrEmptyItemName), errors.Is(err, sources.ErrInvalidItemType):
		s.sendError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.logger.Error("Price search failed", "item_name", q.ItemName, "error", err)
		s.sendError(w, http.StatusInternalServerError, err)
		return
	case result == nil:
		s.sendJSON(w, http.StatusNotFound, map[string]string{"error": "no price found"})
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

// handleInvalidate drops the cached price of one item.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	itemType, err := sources.ParseItemType(params.Get("type"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.InvalidatePriceCache(r.Context(), params.Get("name"), itemType, params.Get("dosage")); err != nil {
		s.sendInvalidationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInvalidateType drops every cached price of an item type.
func (s *Server) handleInvalidateType(w http.ResponseWriter, r *http.Request) {
	itemType, err := sources.ParseItemType(chi.URLParam(r, "itemType"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.InvalidateItemType(r.Context(), itemType); err != nil {
		s.sendInvalidationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendInvalidationError(w http.ResponseWriter, err error) {
	if errors.Is(err, search.ErrEmptyItemName) || errors.Is(err, sources.ErrInvalidItemType) {
		s.sendError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Error("Cache invalidation failed", "error", err)
	s.sendError(w, http.StatusInternalServerError, err)
}

// handleSubmitJob queues a background price search.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.sendJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "background jobs are disabled"})
		return
	}

	var req jobs.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	id, err := s.jobs.Submit(req)
	switch {
	case errors.Is(err, jobs.ErrInvalidRequest):
		s.sendError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrQueueClosed):
		s.sendError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.sendError(w, http.StatusInternalServerError, err)
		return
	}
	s.sendJSON(w, http.StatusAccepted, map[string]string{"job_id": id.String()})
}

// handleHistory lists recent price searches.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.sendJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if s.history == nil {
		s.sendJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("History query failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, err)
		return
	}
	s.sendJSON(w, http.StatusOK, entries)
}

func (s *Server) sendError(w http.ResponseWriter, status int, err error) {
	s.sendJSON(w, status, map[string]string{"error": err.Error()})
}

// sendJSON sends a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}
