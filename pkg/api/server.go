// Package api serves a read-only HTTP view of a resource project: container
// headers, decoded payloads, the UID registry and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssargent/respack/pkg/metrics"
	"github.com/ssargent/respack/pkg/store"
)

const shutdownTimeout = 5 * time.Second

// Server holds the API server state
type Server struct {
	store    *store.Store
	config   ServerConfig
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewServer creates a new API server. A nil gatherer serves the default
// Prometheus registry.
func NewServer(s *store.Store, config ServerConfig, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		store:    s,
		config:   config,
		metrics:  s.Metrics(),
		gatherer: gatherer,
		logger:   s.Logger(),
	}
}

// Router builds the route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(s.config.APIKey))

		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/formats", s.metrics.InstrumentHandler("GET", "/api/v1/formats", s.handleFormats))

		// Containers
		r.Get("/header", s.metrics.InstrumentHandler("GET", "/api/v1/header", s.handleHeader))
		r.Get("/resource", s.metrics.InstrumentHandler("GET", "/api/v1/resource", s.handleResource))

		// Registry
		r.Get("/uids", s.metrics.InstrumentHandler("GET", "/api/v1/uids", s.handleListUIDs))
		r.Get("/uids/{uid}", s.metrics.InstrumentHandler("GET", "/api/v1/uids/{uid}", s.handleGetUID))
	})

	return r
}

// Addr is the listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting inspection API", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down inspection API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
