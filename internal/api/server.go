// Package api exposes the ingestion, detection, and re-derivation pipeline
// over HTTP. The server holds the last ingested events and the last derived
// bundle so callers can change thresholds without resubmitting raw data.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/loginlens-project/loginlens/internal/bus"
	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/report"
)

// Server is the loginlens REST API server.
type Server struct {
	cfg    *core.Config
	logger zerolog.Logger
	server *http.Server
	bus    *bus.Publisher // nil when publishing is disabled

	mu           sync.RWMutex
	lastEvents   []core.CanonicalEvent
	lastSettings core.DetectionSettings
	lastBundle   *report.Bundle
}

// NewServer creates an API server. publisher may be nil.
func NewServer(cfg *core.Config, logger zerolog.Logger, publisher *bus.Publisher) *Server {
	s := &Server{
		cfg:          cfg,
		logger:       logger.With().Str("component", "api_server").Logger(),
		bus:          publisher,
		lastSettings: cfg.Detection,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/datasets", s.handleDatasets)
	mux.HandleFunc("/api/v1/detect", s.handleDetect)
	mux.HandleFunc("/api/v1/settings", s.handleSettings)
	mux.HandleFunc("/api/v1/report", s.handleReport)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	handler := corsMiddleware(
		loggingMiddleware(
			authMiddleware(mux, cfg.Server.APIKeys, s.logger),
			s.logger,
		),
		cfg.Server.CORSOrigins,
	)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the composed handler chain, used by tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start runs the server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func corsMiddleware(next http.Handler, origins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(origin, origins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// authMiddleware enforces API-key auth when keys are configured. Health and
// metrics endpoints stay open for probes and scrapers.
func authMiddleware(next http.Handler, keys []string, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(keys) == 0 || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		presented := r.Header.Get("X-API-Key")
		for _, k := range keys {
			if presented == k {
				next.ServeHTTP(w, r)
				return
			}
		}
		logger.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("rejected request with bad API key")
		writeError(w, http.StatusUnauthorized, "invalid or missing API key")
	})
}
