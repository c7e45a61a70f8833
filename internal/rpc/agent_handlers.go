package rpc

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/conductor-dev/conductor/internal/supervisor"
)

func (s *Server) handleListActiveAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.supervisor.ListActiveAgents()})
}

func (s *Server) handleStopAgent(c *gin.Context) {
	if err := s.supervisor.StopAgent(c.Param("session")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRunAgent upgrades to a WebSocket and streams SessionEvent frames
// for a freshly spawned agent session, one of the RPC surface's two
// server-streaming endpoints.
func (s *Server) handleRunAgent(c *gin.Context) {
	sessionID := c.Query("session_id")
	engine := c.Query("engine")
	prompt := c.Query("prompt")
	cwd := c.Query("cwd")
	resumeToken := c.Query("resume_token")
	if engine == "" {
		engine = s.defEngine
	}
	if sessionID == "" || engine == "" || cwd == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "session_id, engine, and cwd are required", Code: "invalid_argument"})
		return
	}

	ch, err := s.supervisor.RunAgent(c.Request.Context(), sessionID, engine, prompt, cwd, resumeToken)
	if err != nil {
		writeError(c, err)
		return
	}
	s.streamSession(c, sessionID, ch)
}

// handleAttachAgent upgrades to a WebSocket and subscribes to an
// already-running session's event stream. Events emitted before the
// subscription is registered are not replayed.
func (s *Server) handleAttachAgent(c *gin.Context) {
	sessionID := c.Param("session")
	ch, err := s.supervisor.AttachAgent(sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	s.streamSession(c, sessionID, ch)
}

func (s *Server) streamSession(c *gin.Context, sessionID string, ch <-chan supervisor.Frame) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade agent stream", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Drain and discard any client frames; this stream is server -> client
	// only, but a dead read loop is needed so pong control frames and a
	// client disconnect are both observed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return
			}
			frame := SessionEvent{SessionID: sessionID, Kind: f.Kind, Payload: f.Event}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
