package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/innunfold/hall-feeds/internal/config"
	"github.com/innunfold/hall-feeds/internal/domain"
)

// Server is the HTTP server that serves zone feeds and the hall directory.
type Server struct {
	cfg         *config.Config
	feedService *domain.FeedService
	logger      *slog.Logger
	httpServer  *http.Server
}

// NewServer creates a new HTTP server with the given feed service.
func NewServer(cfg *config.Config, feedService *domain.FeedService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		feedService: feedService,
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/feed", s.handleZoneFeed)
	mux.HandleFunc("GET /api/v1/zones/stats", s.handleZoneStats)
	mux.HandleFunc("GET /api/v1/halls", s.handleListHalls)
	mux.HandleFunc("GET /api/v1/halls/featured", s.handleFeaturedHalls)
	mux.HandleFunc("GET /api/v1/halls/{id}", s.handleGetHall)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleZoneFeed(w http.ResponseWriter, r *http.Request) {
	zone, ok := domain.ParseZone(r.URL.Query().Get("zone"))
	if !ok {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "zone must be one of fast, cruise, archive")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			s.logger.Warn("invalid limit parameter", "limit", l, "error", err)
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	hallID := r.URL.Query().Get("hall")

	feed, err := s.feedService.GetZoneFeed(r.Context(), zone, hallID, limit)
	if err != nil {
		s.logger.Error("failed to get zone feed",
			"zone", zone,
			"hall", hallID,
			"limit", limit,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get feed")
		return
	}

	writeJSON(w, http.StatusOK, feed)
}

func (s *Server) handleZoneStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.feedService.ZoneStats(r.Context())
	if err != nil {
		s.logger.Error("failed to get zone stats", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get zone stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListHalls(w http.ResponseWriter, r *http.Request) {
	halls, err := s.feedService.ListHalls(r.Context())
	if err != nil {
		s.logger.Error("failed to list halls", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list halls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"halls": halls})
}

func (s *Server) handleFeaturedHalls(w http.ResponseWriter, r *http.Request) {
	n := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 50 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 50")
			return
		}
		n = parsed
	}

	halls, err := s.feedService.FeaturedHalls(r.Context(), n)
	if err != nil {
		s.logger.Error("failed to get featured halls", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get featured halls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"halls": halls})
}

func (s *Server) handleGetHall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	hall, err := s.feedService.GetHall(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NotFound", "hall not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get hall", "hall", id, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get hall")
		return
	}
	writeJSON(w, http.StatusOK, hall)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
