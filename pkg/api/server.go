// Package api HAT EEPROM REST API
//
// @title           hatrom REST API
// @version         1.0.0
// @description     Decodes, encodes and catalogs Raspberry Pi HAT EEPROM images.
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// Server holds the API server state
type Server struct {
	store    ImageStore
	config   ServerConfig
	metrics  *Metrics
	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewServer creates a new API server with its own metrics registry
func NewServer(store ImageStore, config ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		store:    store,
		config:   config,
		metrics:  NewMetrics(registry),
		registry: registry,
		logger:   logger,
	}
}

// Router builds the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	metrics := s.metrics

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))
		}

		// Health check
		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		// Codec
		r.Post("/decode", metrics.InstrumentHandler("POST", "/api/v1/decode", s.handleDecode))
		r.Post("/encode", metrics.InstrumentHandler("POST", "/api/v1/encode", s.handleEncode))

		// Inventory
		r.Post("/images", metrics.InstrumentHandler("POST", "/api/v1/images", s.handlePutImage))
		r.Get("/images", metrics.InstrumentHandler("GET", "/api/v1/images", s.handleListImages))
		r.Get("/images/{id}", metrics.InstrumentHandler("GET", "/api/v1/images/{id}", s.handleGetImage))
		r.Get("/images/{id}/raw", metrics.InstrumentHandler("GET", "/api/v1/images/{id}/raw", s.handleGetImageRaw))
		r.Delete("/images/{id}", metrics.InstrumentHandler("DELETE", "/api/v1/images/{id}", s.handleDeleteImage))
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts down gracefully
func StartServer(ctx context.Context, store ImageStore, config ServerConfig, logger *slog.Logger) error {
	server := NewServer(store, config, logger)

	addr := fmt.Sprintf("%s:%d", config.Bind, config.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start background metrics updater; it must stop before the store closes
	ctx, cancel := context.WithCancel(ctx)
	updaterDone := make(chan struct{})
	go func() {
		defer close(updaterDone)
		server.startMetricsUpdater(ctx, 30*time.Second)
	}()
	defer func() {
		cancel()
		<-updaterDone
	}()

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("starting hatrom REST API server",
			"addr", addr,
			"auth", config.APIKey != "",
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	server.logger.Info("shutting down hatrom REST API server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

// startMetricsUpdater periodically refreshes the inventory gauge
func (s *Server) startMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.refreshInventoryStats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshInventoryStats()
		}
	}
}

func (s *Server) refreshInventoryStats() {
	entries, err := s.store.List()
	if err != nil {
		s.logger.Warn("inventory stats refresh failed", "error", err)
		return
	}
	s.metrics.UpdateInventoryStats(len(entries))
}
