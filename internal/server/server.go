package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/advisor-ai/advisor/internal/history"
	"github.com/advisor-ai/advisor/internal/logging"
	"github.com/advisor-ai/advisor/internal/metrics"
	"github.com/advisor-ai/advisor/internal/orchestrator"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	RateRPS      float64
	RateBurst    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		RateRPS:      10,
		RateBurst:    20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE
	}
}

// Server is the HTTP server.
type Server struct {
	config    *Config
	router    *chi.Mux
	httpSrv   *http.Server
	engine    *orchestrator.Engine
	store     history.Store
	collector *metrics.Collector
	limiter   *clientLimiter
}

// New creates a new Server instance.
func New(cfg *Config, engine *orchestrator.Engine, store history.Store, collector *metrics.Collector) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config:    cfg,
		router:    chi.NewRouter(),
		engine:    engine,
		store:     store,
		collector: collector,
		limiter:   newClientLimiter(cfg.RateRPS, cfg.RateBurst),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(requestLogger)

	// Recover from panics
	s.router.Use(middleware.Recoverer)

	// CORS
	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Per-client rate limiting
	s.router.Use(s.limiter.middleware)
}

// requestLogger logs one line per request through the shared logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
