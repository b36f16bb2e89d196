// Package server exposes the registered sites over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pillscan/internal/config"
	"pillscan/internal/formatter"
	"pillscan/internal/logging"
	"pillscan/internal/metrics"
	"pillscan/internal/scraper"
	"pillscan/internal/sites/interactions"
)

// MaxBodySize bounds uploaded images.
const MaxBodySize = 10 << 20

// Server is the pillscan HTTP API.
type Server struct {
	server    *http.Server
	router    chi.Router
	config    *config.Config
	logger    *zap.Logger
	limiter   *RateLimiter
	cache     scraper.IDCache
	startedAt time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithIDCache shares an ID cache across requests.
func WithIDCache(c scraper.IDCache) Option {
	return func(s *Server) { s.cache = c }
}

// NewServer creates a server instance listening on cfg.ServerAddress.
func NewServer(cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	router := chi.NewRouter()

	s := &Server{
		server: &http.Server{
			Handler:           router,
			Addr:              cfg.ServerAddress,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		router:    router,
		config:    cfg,
		logger:    logging.OrNop(logger),
		limiter:   NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Middleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router.Get("/v1/sites", s.handleSites)

	s.router.With(s.limiter.Middleware).Get("/v1/sites/{site}", s.handleScrape)
	s.router.With(s.limiter.Middleware).Post("/v1/sites/{site}", s.handleScrape)
}

// Start serves until Shutdown. It also prunes idle rate limiter buckets.
func (s *Server) Start(ctx context.Context) error {
	go s.limiter.Run(ctx, 30*time.Minute)

	s.logger.Info("starting server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("server forced to shutdown", zap.Error(err))
		return s.server.Close()
	}
	return nil
}

type healthResponse struct {
	Status string   `json:"status"`
	Uptime string   `json:"uptime"`
	Sites  []string `json:"sites"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
		Sites:  scraper.Names(),
	})
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	type siteInfo struct {
		Name string `json:"name"`
		Cost int64  `json:"cost"`
	}
	names := scraper.Names()
	sites := make([]siteInfo, 0, len(names))
	for _, name := range names {
		sites = append(sites, siteInfo{Name: name, Cost: SiteCost(name)})
	}
	respondWithJSON(w, http.StatusOK, sites)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site")
	site, ok := scraper.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown site: %s", name))
		return
	}

	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	if !formatter.Valid(format) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", formatter.ErrUnsupportedFormat, format))
		return
	}

	opts := scraper.Options{
		Config:  s.config,
		Logger:  s.logger.With(zap.String("site", name), zap.String("request_id", middleware.GetReqID(r.Context()))),
		IDCache: s.cache,
		Remote:  true,
		Extra:   map[string]string{},
	}
	for _, key := range []string{"with", "color", "shape"} {
		if v := q.Get(key); v != "" {
			opts.Extra[key] = v
		}
	}

	if r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		opts.Body = body
	}

	target := q.Get("q")
	if target == "" && len(opts.Body) == 0 {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	content, err := site.Scrape(r.Context(), target, opts)
	if err != nil {
		status := statusFor(err)
		opts.Logger.Warn("scrape failed", zap.Int("status", status), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	out, err := formatter.Format(content, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", formatter.ContentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// statusFor maps a scrape error to a response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scraper.ErrMissingInput):
		return http.StatusBadRequest
	case errors.Is(err, config.ErrMissingPredictionConfig):
		return http.StatusServiceUnavailable
	case errors.Is(err, interactions.ErrResolveTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	respondWithJSON(w, code, map[string]string{"error": msg})
}
