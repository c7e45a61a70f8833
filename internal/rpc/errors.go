package rpc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conductor-dev/conductor/internal/sidecar"
	"github.com/conductor-dev/conductor/internal/store"
	"github.com/conductor-dev/conductor/internal/supervisor"
)

// errorResponse is the JSON body of every failed unary call: a message
// plus one of the fixed status codes (invalid_argument, not_found,
// already_exists, internal).
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps err to an RPC status and writes the JSON error body.
func writeError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, errorResponse{Error: err.Error(), Code: code})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrRepoNotFound),
		errors.Is(err, store.ErrWorkspaceNotFound),
		errors.Is(err, store.ErrBaseBranchNotFound),
		errors.Is(err, supervisor.ErrSessionNotFound),
		errors.Is(err, sidecar.ErrNoSession):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, store.ErrRepoNameTaken),
		errors.Is(err, store.ErrWorkspacePathExists),
		errors.Is(err, supervisor.ErrSessionExists):
		return http.StatusConflict, "already_exists"

	case errors.Is(err, store.ErrRepoAmbiguous),
		errors.Is(err, store.ErrWorkspaceAmbiguous),
		errors.Is(err, store.ErrBaseBranchAmbiguous),
		errors.Is(err, store.ErrInvalidFilePath),
		errors.Is(err, store.ErrFileNotUTF8),
		errors.Is(err, store.ErrWorkspaceDirty):
		return http.StatusBadRequest, "invalid_argument"

	default:
		var unknownEngine *supervisor.ErrUnknownEngine
		if errors.As(err, &unknownEngine) {
			return http.StatusBadRequest, "invalid_argument"
		}
		return http.StatusInternalServerError, "internal"
	}
}
