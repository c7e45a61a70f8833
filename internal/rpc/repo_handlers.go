package rpc

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/events/bus"
	"github.com/conductor-dev/conductor/internal/store"
)

// repoAddRequest covers both RepoAdd (Path set) and RepoAddURL (URL set);
// exactly one of the two must be present.
type repoAddRequest struct {
	Path          string `json:"path"`
	URL           string `json:"url"`
	Name          string `json:"name"`
	DefaultBranch string `json:"default_branch"`
}

func (s *Server) handleRepoList(c *gin.Context) {
	repos, err := s.lifecycle.RepoList(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}

func (s *Server) handleRepoAdd(c *gin.Context) {
	var req repoAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_argument"})
		return
	}
	if (req.Path == "") == (req.URL == "") {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "exactly one of path or url is required", Code: "invalid_argument"})
		return
	}

	var repo *store.Repo
	var err error
	if req.URL != "" {
		repo, err = s.lifecycle.RepoAddURL(c.Request.Context(), req.URL, req.Name, req.DefaultBranch)
	} else {
		repo, err = s.lifecycle.RepoAdd(c.Request.Context(), req.Path, req.Name, req.DefaultBranch)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	s.publishLifecycleEvent(events.RepoAdded, map[string]interface{}{"repo_id": repo.ID, "name": repo.Name})
	c.JSON(http.StatusOK, repo)
}

// publishLifecycleEvent best-effort mirrors a registry change onto the
// configured event bus so an out-of-process observer (or a future GUI
// shell) can react without polling the RPC surface. A nil bus makes this
// a no-op; conductord always wires one (the in-memory bus by default).
func (s *Server) publishLifecycleEvent(eventType string, data map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	_ = s.eventBus.Publish(context.Background(), eventType, bus.NewEvent(eventType, "rpc", data))
}
