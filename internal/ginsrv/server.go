package ginsrv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/amar74/n-be-sub001/internal/logger"
)

// Server wraps an http.Server over a gin router with the standard middleware
// stack applied: recovery, request ID, request logging, CORS.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger logger.Logger
	cfg    *Config
}

// New builds the server. setupRoutes registers service routes after the
// middleware stack.
func New(cfg *Config, log logger.Logger, setupRoutes func(*gin.Engine)) *Server {
	cfg.SetDefaults()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestID())
	router.Use(RequestLogger(log))
	router.Use(CORS(cfg.CORSOrigins))

	if setupRoutes != nil {
		setupRoutes(router)
	}

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: log,
		cfg:    cfg,
	}
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start blocks serving requests until shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		logger.String("address", s.server.Addr),
		logger.String("service", s.cfg.ServiceName),
		logger.String("version", s.cfg.ServiceVersion),
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains connections within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Run serves until SIGINT/SIGTERM or context cancellation, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	// The run context may already be cancelled; shutdown needs its own.
	return s.Shutdown(context.Background())
}
