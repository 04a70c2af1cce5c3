package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncforge/themesync/internal/sync"
)

// Server is the local control-plane HTTP server. It lets external tooling
// drive the daemon: query status, gate the import path and trigger bulk
// exports.
type Server struct {
	addr   string
	server *http.Server
}

// NewServer creates a control server bound to addr, driving the given
// engine.
func NewServer(addr string, engine *sync.Engine) *Server {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: setupRoutes(engine),
		// Timeouts to prevent slow client attacks
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	return &Server{
		addr:   addr,
		server: httpServer,
	}
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", s.addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control plane: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}

func setupRoutes(engine *sync.Engine) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		corsMiddleware(),
	)

	h := newHandler(engine)

	r.GET("/", h.Index)
	v1 := r.Group("/v1")
	{
		v1.GET("/status", h.Status)
		v1.POST("/pause", h.Pause)
		v1.POST("/resume", h.Resume)
		v1.POST("/export/set/:name", h.ExportSet)
		v1.POST("/export/theme/:name", h.ExportTheme)
	}

	return r
}
