package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ringsim/internal/api/http"
	"github.com/GriffinCanCode/ringsim/internal/api/middleware"
	"github.com/GriffinCanCode/ringsim/internal/api/ws"
	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/config"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/tracing"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	engine   *simulation.Engine
	tracer   *tracing.Tracer
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	config   *config.Config
}

// NewServer creates a new server instance. A nil logger is built from the
// logging section of cfg.
func NewServer(cfg *config.Config, logger *logging.Logger, version string) (*Server, error) {
	if logger == nil {
		logger = logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing ringsim server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("version", version),
		zap.Int("max_buffer", cfg.Simulation.MaxBufferSize),
		zap.Int("max_workers", cfg.Simulation.MaxWorkers),
	)

	presets := config.DefaultPresets()
	if cfg.Presets.Path != "" {
		loaded, err := config.LoadPresets(cfg.Presets.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load presets: %w", err)
		}
		presets = loaded
		logger.Info("Loaded scenario presets",
			zap.String("path", cfg.Presets.Path),
			zap.Strings("names", presets.Names()),
		)
	}

	// Metrics first, the engine reports into them
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)
	logger.Info("Performance monitoring initialized")

	tracer := tracing.New("ringsim", logger.Named("tracing"))
	logger.Info("Distributed tracing initialized")

	engine := simulation.NewEngine(cfg.Simulation.Options(), logger.Named("simulation")).
		WithRecorder(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.CORSOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(engine, presets, metrics, logger.Named("http"), version)
	wsHandler := ws.NewHandler(engine, cfg.Stream, metrics, logger.Named("ws"))

	handlers.Register(router)
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine:   engine,
		tracer:   tracer,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Handler exposes the router, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Engine returns the simulation engine behind the API
func (s *Server) Engine() *simulation.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until it stops. A graceful shutdown
// is not reported as an error.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains HTTP connections, then stops the simulation and waits for
// its workers
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to drain HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to drain http server: %w", err))
	}
	if err := s.engine.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to stop simulation workers", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to stop simulation: %w", err))
	}
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}

// Close shuts down within the configured shutdown timeout
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}
