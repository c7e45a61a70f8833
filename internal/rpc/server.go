// Package rpc is Conductor's control plane: a local-only socket exposing
// unary and server-streaming endpoints over repository, workspace, session
// sidecar, and agent operations. Unary endpoints
// are plain HTTP-over-Unix-socket handlers; RunAgent/AttachAgent upgrade
// to a WebSocket frame stream of SessionEvent values. Every handler runs on
// its own goroutine, which is the Go runtime's own bounded worker pool for
// blocking database and git work -- there is no separate executor to wire.
package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/conductor-dev/conductor/internal/common/logger"
	"github.com/conductor-dev/conductor/internal/events/bus"
	"github.com/conductor-dev/conductor/internal/supervisor"
	"github.com/conductor-dev/conductor/internal/tracing"
	"github.com/conductor-dev/conductor/internal/workspace"
)

// version is the daemon's reported build version. Overridden at link time
// in a packaged build; a plain constant here since this repository does
// not yet wire an -ldflags version stamp.
const version = "0.1.0"

// Server wires the Repository/Workspace/Session-Sidecar/Agent/Lifecycle
// RPC endpoints to their underlying components and serves them over a
// Unix domain socket.
type Server struct {
	lifecycle  *workspace.Manager
	supervisor *supervisor.Supervisor
	eventBus   bus.EventBus
	logger     *logger.Logger
	router     *gin.Engine
	startedAt  time.Time

	socketPath string
	socketMode os.FileMode
	defEngine  string
	listener   net.Listener
	httpServer *http.Server
}

// Config holds the knobs Server needs beyond its component dependencies.
type Config struct {
	SocketPath     string
	SocketPermMode os.FileMode
	// DefaultEngine backs RunAgent calls that omit an engine.
	DefaultEngine string
}

// NewServer builds a Server; call ListenAndServe to start accepting
// connections.
func NewServer(cfg Config, lifecycle *workspace.Manager, sup *supervisor.Supervisor, eventBus bus.EventBus, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		lifecycle:  lifecycle,
		supervisor: sup,
		eventBus:   eventBus,
		logger:     log.WithFields(zap.String("component", "rpc")),
		router:     gin.New(),
		startedAt:  time.Now().UTC(),
		socketPath: cfg.SocketPath,
		socketMode: cfg.SocketPermMode,
		defEngine:  cfg.DefaultEngine,
	}
	if s.socketPath == "" {
		s.socketPath = "/tmp/conductor-daemon.sock"
	}
	if s.socketMode == 0 {
		s.socketMode = 0o600
	}
	s.router.Use(gin.Recovery(), s.requestLogger(), s.otelMiddleware())
	s.registerRoutes()
	return s
}

// ListenAndServe removes a stale socket file left by a prior crashed run,
// binds a new Unix domain socket at 0600, and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := removeStaleSocket(s.socketPath); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, s.socketMode); err != nil {
		_ = ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.router}

	s.logger.Info("rpc surface listening", zap.String("socket", s.socketPath))

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting new connections and closes the listener and
// socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	_ = os.Remove(s.socketPath)
	return nil
}

func removeStaleSocket(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("rpc request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) otelMiddleware() gin.HandlerFunc {
	tracer := tracing.Tracer("conductor-rpc")
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ctx, sp := tracer.Start(c.Request.Context(), c.Request.Method+" "+path)
		defer sp.End()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
