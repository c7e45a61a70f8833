package rpc

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type pingResponse struct {
	Version    string  `json:"version"`
	UptimeSecs float64 `json:"uptime_secs"`
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, pingResponse{
		Version:    version,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
	})
}

// handleShutdown replies success, then in the background terminates every
// active agent, waits the supervisor's short grace delay, and shuts the
// listener down, so the reply reaches the client before the process
// disappears.
func (s *Server) handleShutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
	c.Writer.Flush()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.supervisor.Shutdown(ctx)
		_ = s.Shutdown(ctx)
	}()
}
