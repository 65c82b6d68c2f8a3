package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/CacheOnHover/internal/api/http"
	"github.com/GriffinCanCode/CacheOnHover/internal/api/middleware"
	"github.com/GriffinCanCode/CacheOnHover/internal/api/ws"
	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/config"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/browser"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/http/client"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	host    *browser.Host
	gate    *tabgate.Gate
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing CacheOnHover server",
		zap.String("addr", cfg.Server.Address()),
		zap.Bool("gate", cfg.Gate.Enabled),
	)

	// Metrics first, every other component reports into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("cacheonhover", logger.Component("trace"))

	fetcher := client.NewClient(fetchOptions(cfg.Fetch, logger, metrics))
	loader := browser.NewLoader(fetcher, browser.LoaderOptions{
		Logger:   logger.Component("loader"),
		Recorder: metrics,
		Tracer:   tracer,
	})
	host := browser.NewHost(loader, browser.HostOptions{
		Logger:    logger.Component("host"),
		Recorder:  metrics,
		Documents: metrics,
	})

	var gate *tabgate.Gate
	if cfg.Gate.Enabled {
		gate, err = tabgate.New(context.Background(), host, tabgate.Options{
			Logger:   logger.Component("gate"),
			Recorder: metrics,
			Filters:  cfg.Gate.Filters,
		})
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to create tab gate: %w", err)
		}
		host.UseGate(gate)
		logger.Info("Tab gate enabled", zap.Strings("filters", cfg.Gate.Filters))
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger.Component("http")))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(middleware.Logger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins...)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		limits.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(limits))
	}

	handlers := apihttp.NewHandlers(host, gate, fetcher, metrics, logger.Component("api"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(host, ws.Options{
		Logger:   logger.Component("ws"),
		Recorder: metrics,
	})
	router.GET("/ws", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		host:    host,
		gate:    gate,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		tracer:  tracer,
	}, nil
}

func fetchOptions(cfg config.FetchConfig, logger *logging.Logger, metrics *monitoring.Metrics) client.Options {
	opts := client.DefaultOptions()
	opts.Timeout = cfg.Timeout()
	opts.RequestsPerSecond = cfg.RequestsPerSecond
	opts.MaxBodyBytes = cfg.MaxBodyBytes
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	opts.Logger = logger.Component("client")

	breakerLog := logger.Component("breaker")
	opts.Breaker.OnStateChange = func(name string, from, to resilience.State) {
		metrics.BreakerStateChange(name, from, to)
		breakerLog.Warn("Circuit breaker state changed",
			zap.String("origin", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	return opts
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Host returns the tab host.
func (s *Server) Host() *browser.Host {
	return s.host
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Server.Address()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// Close closes every tab, drains pending spans and flushes the logger.
func (s *Server) Close() error {
	for _, info := range s.host.Tabs() {
		if err := s.host.CloseTab(info.ID); err != nil && !errors.Is(err, browser.ErrTabNotFound) {
			s.logger.Warn("Failed to close tab", zap.Stringer("tab_id", info.ID), zap.Error(err))
		}
	}
	s.tracer.Close()
	_ = s.logger.Sync()
	return nil
}
