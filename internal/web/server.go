// Package web serves the executor's command API over HTTP and its push
// events over a WebSocket.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
)

const (
	DefaultAddr         = "127.0.0.1:7420"
	DefaultWriteTimeout = 5 * time.Second
)

// Server coordinates the HTTP router and the event hub
type Server struct {
	addr string
	log  logr.Logger

	hub    *Hub
	router *gin.Engine

	httpServer   *http.Server
	httpListener net.Listener
}

// New creates a server, starts its hub and subscribes the hub to the
// event bus. Does not start listening - call Start() for that.
func New(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	log := deps.Logger.WithName("web")

	hub := NewHub()
	go hub.Run()
	if deps.Bus != nil {
		deps.Bus.Subscribe(func(e events.Event) { hub.Broadcast(e) })
	}

	h := &handlers{
		gw:           deps.Gateway,
		history:      deps.History,
		hub:          hub,
		log:          log,
		writeTimeout: cfg.WriteTimeout,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/events", h.streamEvents)

	project := api.Group("/projects/:project")
	project.GET("/events", h.eventHistory)
	project.GET("/features", h.listFeatures)
	project.POST("/features", h.createFeature)
	project.PATCH("/features/:id", h.updateFeature)
	project.DELETE("/features/:id", h.deleteFeature)
	project.POST("/features/:id/start", h.startFeature)
	project.POST("/features/:id/stop", h.stopFeature)

	return &Server{
		addr:   cfg.Addr,
		log:    log,
		hub:    hub,
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on HTTP.
// Non-blocking - the server runs in a goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("HTTP listen: %w", err)
	}
	s.httpListener = listener

	// Update addr with actual address (important for ephemeral ports)
	s.addr = listener.Addr().String()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(err, "HTTP server stopped")
		}
	}()

	s.log.Info("listening", "addr", s.addr)
	return nil
}

// Stop performs graceful shutdown.
// The hub stops first so WebSocket handlers return and do not hold
// Shutdown open.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// Addr returns the HTTP listen address
func (s *Server) Addr() string {
	return s.addr
}

// requestLogger logs each request at debug verbosity
func requestLogger(log logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.V(1).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}
