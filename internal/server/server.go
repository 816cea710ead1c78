// Package server provides the HTTP server and routing for Verdant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/config"
	analyticshandlers "github.com/verdantfund/verdant/internal/modules/analytics/handlers"
	notificationhandlers "github.com/verdantfund/verdant/internal/modules/notifications/handlers"
	portfoliohandlers "github.com/verdantfund/verdant/internal/modules/portfolio/handlers"
)

// apiTimeout bounds every API request except the notification stream.
const apiTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log           zerolog.Logger
	Config        *config.Config
	Port          int
	DevMode       bool
	Portfolio     *portfoliohandlers.Handler
	Analytics     *analyticshandlers.Handler
	Notifications *notificationhandlers.Handler
	System        *SystemHandlers
}

// Server represents the HTTP server
type Server struct {
	router        *chi.Mux
	server        *http.Server
	log           zerolog.Logger
	cfg           *config.Config
	portfolio     *portfoliohandlers.Handler
	analytics     *analyticshandlers.Handler
	notifications *notificationhandlers.Handler
	system        *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		log:           cfg.Log.With().Str("component", "server").Logger(),
		cfg:           cfg.Config,
		portfolio:     cfg.Portfolio,
		analytics:     cfg.Analytics,
		notifications: cfg.Notifications,
		system:        cfg.System,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// No whole-request read or write timeouts: the notification stream
	// holds its connection open indefinitely. API routes are bounded by
	// the timeout middleware instead.
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// WebSocket connections outlive the request timeout, so the
		// notification stream mounts before the timed group
		s.notifications.RegisterStreamRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(apiTimeout))

			// Portfolio module
			s.portfolio.RegisterRoutes(r)

			// Analytics module
			s.analytics.RegisterRoutes(r)

			// Notifications module (on-demand scan)
			s.notifications.RegisterRoutes(r)

			// System monitoring and operations
			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.system.HandleSystemStatus)
				r.Get("/jobs", s.system.HandleJobsStatus)
				r.Post("/jobs/{name}/run", s.system.HandleRunJob)
				r.Get("/backups", s.system.HandleListBackups)
				r.Post("/backups/run", s.system.HandleRunBackup)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
