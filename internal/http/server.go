// Package http serves the memory operations over a JSON REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/recall/internal/logging"
	"github.com/fyrsmithlabs/recall/internal/memlog"
	"github.com/fyrsmithlabs/recall/internal/memory"
)

// MemoryService is the facade the server exposes.
type MemoryService interface {
	Append(ctx context.Context, key, userText, assistantText string) (memlog.Record, error)
	BuildContext(ctx context.Context, key, query string) (*memory.Context, error)
	Clear(ctx context.Context, key string) error
	LatestN(ctx context.Context, key string, n int) ([]memlog.Record, error)
	ShortTerm(ctx context.Context, key string, n int) (string, error)
	SummarizeUserHistory(ctx context.Context, key string) (string, error)
	ExtractTags(text string) []string
}

// Server provides HTTP endpoints for recall.
type Server struct {
	echo    *echo.Echo
	memory  MemoryService
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// LatestN is the default n for GET .../memories.
	LatestN int
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

// NewServer creates a new HTTP server.
func NewServer(svc MemoryService, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("memory service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}
	if cfg.LatestN <= 0 {
		cfg.LatestN = 10
	}
	bodyLimit := "1M"
	if cfg.MaxBodyBytes > 0 {
		bodyLimit = fmt.Sprintf("%dB", cfg.MaxBodyBytes)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{
		echo:    e,
		memory:  svc,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), reqID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", reqID),
			)
			return nil
		}
	})

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/tags", s.handleTags)

	users := v1.Group("/users/:key")
	users.POST("/memories", s.handleAppend)
	users.GET("/memories", s.handleLatest)
	users.DELETE("/memories", s.handleClear)
	users.POST("/context", s.handleContext)
	users.GET("/summary", s.handleSummary)
	users.GET("/short-term", s.handleShortTerm)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
