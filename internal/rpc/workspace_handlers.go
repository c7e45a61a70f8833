package rpc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conductor-dev/conductor/internal/events"
)

type workspaceCreateRequest struct {
	Repo       string `json:"repo"`
	Name       string `json:"name"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
}

type workspaceArchiveRequest struct {
	Force bool `json:"force"`
}

func (s *Server) handleWorkspaceList(c *gin.Context) {
	workspaces, err := s.lifecycle.WorkspaceList(c.Request.Context(), c.Query("repo"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, workspaces)
}

func (s *Server) handleWorkspaceCreate(c *gin.Context) {
	var req workspaceCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_argument"})
		return
	}
	if req.Repo == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "repo is required", Code: "invalid_argument"})
		return
	}
	ws, err := s.lifecycle.WorkspaceCreate(c.Request.Context(), req.Repo, req.Name, req.Branch, req.BaseBranch)
	if err != nil {
		writeError(c, err)
		return
	}
	s.publishLifecycleEvent(events.WorkspaceCreated, map[string]interface{}{"workspace_id": ws.ID, "repository_id": ws.RepoID})
	c.JSON(http.StatusOK, ws)
}

func (s *Server) handleWorkspaceGet(c *gin.Context) {
	ws, err := s.lifecycle.Store().ResolveWorkspace(c.Request.Context(), c.Param("workspace"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// handleWorkspaceArchive returns {success:false, error} for a routine
// lifecycle failure (dirty worktree, missing workspace) rather than
// failing the HTTP call itself, so thin clients need no special-case
// error handling for an already-clean or dirty-worktree outcome.
func (s *Server) handleWorkspaceArchive(c *gin.Context) {
	var req workspaceArchiveRequest
	_ = c.ShouldBindJSON(&req)

	outcome, err := s.lifecycle.WorkspaceArchive(c.Request.Context(), c.Param("workspace"), req.Force)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	s.publishLifecycleEvent(events.WorkspaceArchived, map[string]interface{}{"workspace_id": outcome.ID, "state": outcome.State})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      outcome.ID,
		"state":   outcome.State,
		"removed": outcome.Removed,
		"message": outcome.Message(),
	})
}

func (s *Server) handleWorkspaceFiles(c *gin.Context) {
	files, err := s.lifecycle.WorkspaceFiles(c.Request.Context(), c.Param("workspace"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) handleWorkspaceChanges(c *gin.Context) {
	changes, err := s.lifecycle.WorkspaceChanges(c.Request.Context(), c.Param("workspace"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

func (s *Server) handleWorkspaceFileContent(c *gin.Context) {
	path := c.Query("path")
	content, err := s.lifecycle.WorkspaceFileContent(c.Request.Context(), c.Param("workspace"), path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "content": content})
}

func (s *Server) handleWorkspaceFileDiff(c *gin.Context) {
	path := c.Query("path")
	diff, err := s.lifecycle.WorkspaceFileDiff(c.Request.Context(), c.Param("workspace"), path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "diff": diff})
}
