// Package httpserver exposes the liveness page and a health endpoint.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"go.uber.org/zap"

	"axiombot/pkg/logger"
	"axiombot/pkg/version"
)

// ConnectionState reports whether the messaging session is up.
type ConnectionState interface {
	Connected() bool
}

// Health is the /healthz payload.
type Health struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
}

// Server is the HTTP surface.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	log        *logger.Logger
	conn       ConnectionState
	addr       string
}

// NewServer builds the router. conn may be nil before a client exists.
func NewServer(log *logger.Logger, conn ConnectionState, host string, port int) *Server {
	s := &Server{
		log:  log.Named("http"),
		conn: conn,
		addr: fmt.Sprintf("%s:%d", host, port),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("HTTP request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			)
			return nil
		},
	}))

	e.GET("/", s.handleRoot)
	e.GET("/healthz", s.handleHealth)
	s.echo = e
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleRoot(c *echo.Context) error {
	return c.HTML(http.StatusOK, "<p2>Hello world</p2>")
}

func (s *Server) handleHealth(c *echo.Context) error {
	connected := s.conn != nil && s.conn.Connected()
	status := "ok"
	if !connected {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, Health{
		Status:    status,
		Connected: connected,
		Version:   version.GetVersion(),
		Uptime:    version.Uptime().Round(time.Second).String(),
	})
}

// Start listens in the background.
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", zap.String("addr", s.addr))

	// fx owns shutdown, so the server is driven directly rather than
	// through echo's Start.
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("HTTP server stopping")
	return s.httpServer.Shutdown(ctx)
}
