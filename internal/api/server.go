// Package api exposes the HTTP search endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mfenderov/postseek/internal/metrics"
	"github.com/mfenderov/postseek/internal/search"
	"github.com/mfenderov/postseek/pkg/models"
)

// Searcher answers a query.
type Searcher interface {
	Search(ctx context.Context, query string) (*models.QueryResponse, error)
}

// Server wires HTTP handlers to the search service.
type Server struct {
	router       chi.Router
	searcher     Searcher
	configErr    error
	cacheControl string
}

// NewServer constructs a Server. When configErr is non-nil the search
// endpoint answers 400 with it instead of searching.
func NewServer(searcher Searcher, configErr error, cacheControl string) *Server {
	s := &Server{
		searcher:     searcher,
		configErr:    configErr,
		cacheControl: cacheControl,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/api/search", s.search)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.ObserveSearch(status, time.Since(start).Seconds())
	}()

	if s.configErr != nil {
		status = http.StatusBadRequest
		writeError(w, status, s.configErr.Error())
		return
	}

	resp, err := s.searcher.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		status = http.StatusInternalServerError
		msg := "search failed"
		if errors.Is(err, search.ErrInvalidQuery) {
			status = http.StatusBadRequest
			msg = err.Error()
		} else {
			slog.Error("search failed", "error", err)
		}
		writeError(w, status, msg)
		return
	}

	if s.cacheControl != "" {
		w.Header().Set("Cache-Control", s.cacheControl)
	}
	writeJSON(w, status, resp)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("write JSON failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
