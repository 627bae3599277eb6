// Package api exposes the proxied review path over HTTP: anonymous
// clients identified by a device id submit code and receive validated
// review outcomes, subject to the daily quota.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/reviewloop/internal/orchestrator"
	"github.com/reviewloop/internal/ratelimit"
)

// Server represents the API server
type Server struct {
	echo    *echo.Echo
	port    int
	orch    *orchestrator.Orchestrator
	limiter *ratelimit.Limiter
}

// NewServer creates a new API server
func NewServer(port int, orch *orchestrator.Orchestrator, limiter *ratelimit.Limiter) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	// Coarse per-IP burst protection in front of the per-device daily
	// quota, which is enforced by the orchestrator.
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(20))))

	server := &Server{
		echo:    e,
		port:    port,
		orch:    orch,
		limiter: limiter,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/review", s.handleReview)
	v1.GET("/quota", s.handleQuota)
}

// Start begins the API server and blocks until interrupted.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
