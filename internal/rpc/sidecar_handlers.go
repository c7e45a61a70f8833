package rpc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conductor-dev/conductor/internal/sidecar"
)

type sidecarCreateRequest struct {
	AgentID string `json:"agent_id"`
}

type sidecarResumeRequest struct {
	ResumeID string `json:"resume_id"`
}

type chatAppendRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// workspacePath resolves wsRef to its on-disk path via the lifecycle's
// store, so sidecar handlers can operate directly on internal/sidecar
// without the lifecycle Manager needing session-sidecar methods of its
// own (sidecars are deliberately outside the Workspace Store's schema).
func (s *Server) workspacePath(c *gin.Context) (string, bool) {
	wctx, err := s.lifecycle.Store().WorkspaceContext(c.Request.Context(), c.Param("workspace"))
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return wctx.Path, true
}

func (s *Server) handleSessionGet(c *gin.Context) {
	path, ok := s.workspacePath(c)
	if !ok {
		return
	}
	sess, err := sidecar.Read(path)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess == nil {
		c.JSON(http.StatusOK, gin.H{"session": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (s *Server) handleSessionCreate(c *gin.Context) {
	path, ok := s.workspacePath(c)
	if !ok {
		return
	}
	var req sidecarCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_argument"})
		return
	}
	sess, err := sidecar.Create(path, req.AgentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleSessionSetResume(c *gin.Context) {
	path, ok := s.workspacePath(c)
	if !ok {
		return
	}
	var req sidecarResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_argument"})
		return
	}
	sess, err := sidecar.SetResumeID(path, req.ResumeID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleChatGet(c *gin.Context) {
	path, ok := s.workspacePath(c)
	if !ok {
		return
	}
	chat, err := sidecar.ReadChat(path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (s *Server) handleChatAppend(c *gin.Context) {
	path, ok := s.workspacePath(c)
	if !ok {
		return
	}
	var req chatAppendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_argument"})
		return
	}
	if err := sidecar.AppendChat(path, req.Role, req.Content); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleChatClear(c *gin.Context) {
	path, ok := s.workspacePath(c)
	if !ok {
		return
	}
	if err := sidecar.ClearChat(path); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
