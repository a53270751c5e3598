// Package http provides the HTTP API for expertd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/conversation"
	"github.com/dominicdesy/intelia-expert/internal/orchestrator"
)

// maxBodyBytes bounds POST bodies; questions are short.
const maxBodyBytes = "64K"

// Server provides HTTP endpoints for expertd.
type Server struct {
	echo      *echo.Echo
	orch      *orchestrator.Orchestrator
	knowledge CollectionChecker
	metrics   *HTTPMetrics
	logger    *zap.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string

	// Collections are reported by GET /v1/status when a CollectionChecker
	// is attached.
	Collections []string
}

// Option configures NewServer.
type Option func(*Server)

// WithKnowledge attaches the vector store for knowledge status reporting.
func WithKnowledge(checker CollectionChecker) Option {
	return func(s *Server) { s.knowledge = checker }
}

// NewServer creates a new HTTP server.
func NewServer(orch *orchestrator.Orchestrator, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		orch:    orch,
		metrics: NewHTTPMetrics(logger),
		logger:  logger,
		config:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodyBytes))
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			if c.Path() == "/health" || c.Path() == "/metrics" {
				return nil
			}
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s.registerRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/ask", s.handleAsk)
	v1.GET("/status", s.handleStatus)
	v1.GET("/conversations/:id", s.handleGetConversation)
	v1.DELETE("/conversations/:id", s.handleDeleteConversation)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleAsk runs one conversational turn. Orchestration never fails, so
// every well-formed request gets a 200 with an answer.
func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}
	if req.ConversationID == "" {
		req.ConversationID = c.Request().Header.Get(HeaderConversationID)
	}

	resp := s.orch.Process(c.Request().Context(), req)
	c.Response().Header().Set(HeaderConversationID, resp.ConversationID)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := StatusResponse{
		Status:        "ok",
		Version:       s.config.Version,
		Stats:         s.orch.Stats(),
		Conversations: s.orch.Manager().Cache().Len(),
	}
	if s.knowledge != nil {
		resp.Knowledge = KnowledgeStatus(c.Request().Context(), s.knowledge, s.config.Collections)
		for _, state := range resp.Knowledge {
			if state != CollectionReady {
				resp.Status = "degraded"
				break
			}
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetConversation(c echo.Context) error {
	conv, err := s.orch.Manager().Lookup(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	case err != nil:
		s.logger.Error("loading conversation failed", zap.String("conversation_id", c.Param("id")), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading conversation failed")
	}
	return c.JSON(http.StatusOK, conv.Snapshot())
}

func (s *Server) handleDeleteConversation(c echo.Context) error {
	if err := s.orch.Manager().Delete(c.Request().Context(), c.Param("id")); err != nil {
		s.logger.Error("deleting conversation failed", zap.String("conversation_id", c.Param("id")), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "deleting conversation failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
