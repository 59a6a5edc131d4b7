// Package achievements tracks per-identity progress counters fed by the
// background worker.
package achievements

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/backend/pkg/response"
)

// Handler handles achievement HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an achievements handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /achievements?identity=...
func (h *Handler) List(c *gin.Context) {
	identity, err := uuid.Parse(c.Query("identity"))
	if err != nil {
		response.BadRequest(c, "identity query parameter is required")
		return
	}
	list, err := h.repo.ListByIdentity(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("list achievements", zap.Error(err))
		response.Internal(c, "failed to list achievements")
		return
	}
	response.OK(c, list)
}
