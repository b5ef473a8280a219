package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/ptyd/internal/api/http"
	"github.com/GriffinCanCode/ptyd/internal/api/middleware"
	"github.com/GriffinCanCode/ptyd/internal/api/ws"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ptyd/internal/stream"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	registry *terminal.Registry
	hub      *stream.Hub
	limiter  *middleware.Limiter
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return NewWithLogger(cfg, logger), nil
}

// NewWithLogger creates a server that logs through logger.
func NewWithLogger(cfg *config.Config, logger *logging.Logger) *Server {
	logger.Info("Initializing ptyd",
		zap.String("addr", cfg.Addr()),
		zap.String("default_shell", cfg.Terminal.DefaultShell),
	)

	metrics := monitoring.NewMetrics()

	hub := stream.NewHub(stream.Options{
		ReplayBytes: cfg.Terminal.ReplayBytes,
		QueueSize:   cfg.Terminal.SubscriberQueue,
	}, logger.Logger).WithMetrics(metrics)

	registry := terminal.NewRegistry(cfg.TerminalOptions(), hub, logger.Logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(cfg.Server.AllowOrigins)))

	var limiter *middleware.Limiter
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		limiter = middleware.NewLimiter(rl)
		router.Use(limiter.Handler())
	}

	handlers := apihttp.NewHandlers(registry, hub, metrics, logger.Logger)
	handlers.Register(router)

	wsHandler := ws.NewHandler(registry, hub, metrics, logger.Logger, middleware.OriginChecker(cfg.Server.AllowOrigins))
	wsHandler.Register(router)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		registry: registry,
		hub:      hub,
		limiter:  limiter,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the session registry.
func (s *Server) Registry() *terminal.Registry {
	return s.registry
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully and closes every session.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Shutdown does not track hijacked websocket connections; closing the
	// sessions ends their streams with a close frame.
	srv.RegisterOnShutdown(s.registry.CloseAll)

	if s.limiter != nil {
		go s.limiter.Run(ctx, time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("Graceful shutdown incomplete", zap.Error(err))
	}
	s.Close()
	return err
}

// Close terminates every session and flushes the logger.
func (s *Server) Close() {
	s.registry.CloseAll()
	s.logger.Info("All sessions closed")
	s.logger.Sync()
}
