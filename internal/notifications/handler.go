// Package notifications stores and serves the completion notices produced by
// the background worker. Clients poll the list endpoint; there is no push.
package notifications

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/backend/pkg/response"
)

// Handler handles notification HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /notifications?identity=...
func (h *Handler) List(c *gin.Context) {
	identity, err := uuid.Parse(c.Query("identity"))
	if err != nil {
		response.BadRequest(c, "identity query parameter is required")
		return
	}
	list, err := h.repo.ListByIdentity(c.Request.Context(), identity, 50)
	if err != nil {
		h.logger.Error("list notifications", zap.Error(err))
		response.Internal(c, "failed to list notifications")
		return
	}
	response.OK(c, list)
}

// MarkReadRequest is the body for POST /notifications/:id/read.
type MarkReadRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ok, err := h.repo.MarkRead(c.Request.Context(), id, uuid.MustParse(req.Identity))
	if err != nil {
		h.logger.Error("mark notification read", zap.Error(err))
		response.Internal(c, "failed to update notification")
		return
	}
	if !ok {
		response.NotFound(c, "notification not found")
		return
	}
	response.OK(c, gin.H{"read": true})
}
