// Package server wires the quill engine behind an HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/quillhq/quill/cmd/server/config"
	"github.com/quillhq/quill/cmd/server/middleware"
	"github.com/quillhq/quill/pkg/cache"
	"github.com/quillhq/quill/pkg/connector"
	"github.com/quillhq/quill/pkg/infrastructure/metrics"
	"github.com/quillhq/quill/pkg/interpreter"
	"github.com/quillhq/quill/pkg/planner"
	"github.com/quillhq/quill/pkg/services"
)

// Server owns the dataset cache lifecycle and the HTTP listener.
type Server struct {
	cfg     *config.Config
	logger  zerolog.Logger
	cache    *cache.DatasetCache
	service  services.QueryService
	sessions *planner.SessionStore
	http     *http.Server
}

// New builds a fully wired server from the configuration.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	conn, err := newConnector(cfg, logger)
	if err != nil {
		return nil, err
	}

	var collector metrics.Collector
	var promCollector *metrics.PrometheusCollector
	if cfg.Metrics.Enabled {
		promCollector = metrics.NewPrometheusCollector()
		collector = promCollector
	} else {
		collector = metrics.NewNoOpCollector()
	}

	cacheCfg := cache.DefaultConfig().
		WithRefreshInterval(cfg.Cache.RefreshInterval).
		WithFetchTimeout(cfg.Cache.FetchTimeout).
		WithMaxFileRows(cfg.Cache.MaxFileRows)
	datasetCache := cache.New(conn, cacheCfg, logger, collector)

	executor := interpreter.New(&interpreter.Config{
		MaxInputRows:  cfg.Query.MaxInputRows,
		MaxOutputRows: cfg.Query.MaxOutputRows,
	}, logger)

	var pl planner.Planner
	if cfg.Planner.Endpoint != "" {
		pl = planner.NewHTTPPlanner(cfg.Planner.Endpoint, cfg.Planner.APIKey, cfg.Planner.Timeout, logger)
	}

	svc := services.NewQueryService(
		datasetCache,
		executor,
		pl,
		newLoggerAdapter(logger),
		services.WithMetrics(collector),
		services.WithQueryTimeout(cfg.Query.Timeout),
	)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		cache:    datasetCache,
		service:  svc,
		sessions: planner.NewSessionStore(cfg.Planner.MaxTurns),
	}
	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.routes(promCollector),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

func newConnector(cfg *config.Config, logger zerolog.Logger) (connector.Connector, error) {
	switch cfg.Source.Type {
	case "drive":
		return connector.NewDriveConnector(cfg.Source.Drive.FolderID, cfg.Source.Drive.AccessToken, logger), nil
	case "local":
		return connector.NewLocalDirConnector(cfg.Source.Local.Dir), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Source.Type)
	}
}

// routes builds the handler tree with middleware applied.
func (s *Server) routes(prom *metrics.PrometheusCollector) http.Handler {
	mux := http.NewServeMux()

	auth := middleware.Auth(s.cfg.Auth, s.logger)
	mux.Handle("POST /api/v1/ask", middleware.Chain(http.HandlerFunc(s.handleAsk), auth))
	mux.Handle("POST /api/v1/execute", middleware.Chain(http.HandlerFunc(s.handleExecute), auth))
	mux.Handle("GET /api/v1/schema", middleware.Chain(http.HandlerFunc(s.handleSchema), auth))
	mux.Handle("GET /api/v1/health", http.HandlerFunc(s.handleHealth))

	if prom != nil {
		mux.Handle("GET "+s.cfg.Metrics.Path, prom.Handler())
	}

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.Recovery(s.logger),
		middleware.Logging(s.logger),
	)
}

// Start refreshes the cache once, launches the background refresh loop and
// serves HTTP until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.cache.Start(ctx); err != nil {
		// The first refresh failing is not fatal; the loop retries and the
		// API reports NOT_READY until data lands.
		s.logger.Warn().Err(err).Msg("initial cache refresh failed")
	}

	s.logger.Info().
		Str("address", s.cfg.Address).
		Str("source", s.cfg.Source.Type).
		Msg("server listening")

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the refresh loop.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.cache.Stop()
	s.logger.Info().Msg("server stopped")
	return err
}
