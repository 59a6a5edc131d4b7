package competitions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/backend/internal/models"
	"github.com/studyhive/backend/internal/quiz"
	"github.com/studyhive/backend/internal/sessions"
	"github.com/studyhive/backend/pkg/response"
)

// Handler handles competition HTTP endpoints.
type Handler struct {
	svc    *Service
	core   *sessions.Service
	quiz   *quiz.Service
	logger *zap.Logger
}

// NewHandler creates a competitions handler.
func NewHandler(svc *Service, core *sessions.Service, quizSvc *quiz.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, core: core, quiz: quizSvc, logger: logger}
}

// CreateRequest is the body for POST /competitions.
type CreateRequest struct {
	Identity      string            `json:"identity" binding:"required,uuid"`
	Name          string            `json:"name" binding:"required"`
	Title         string            `json:"title"`
	Subject       string            `json:"subject"`
	Material      string            `json:"material"`
	Capacity      int               `json:"capacity"`
	VsBot         bool              `json:"vs_bot"`
	QuestionCount int               `json:"question_count"`
	Questions     []models.Question `json:"questions"`
}

// Create handles POST /competitions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.svc.Create(c.Request.Context(), CreateParams{
		Identity:      uuid.MustParse(req.Identity),
		Name:          req.Name,
		Title:         req.Title,
		Subject:       req.Subject,
		Material:      req.Material,
		Capacity:      req.Capacity,
		VsBot:         req.VsBot,
		QuestionCount: req.QuestionCount,
		Questions:     req.Questions,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List handles GET /competitions.
func (h *Handler) List(c *gin.Context) {
	list, err := h.core.List(c.Request.Context(), models.KindCompetition, c.Query("subject"))
	if err != nil {
		response.Internal(c, "failed to list competitions")
		return
	}
	response.OK(c, sessions.Summarize(list))
}

// Get handles GET /competitions/:code. Completed competitions include the
// scoreboard and winner so a final poll needs no second request.
func (h *Handler) Get(c *gin.Context) {
	session, err := h.core.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if session.QuizStatus != models.QuizCompleted {
		response.OK(c, session)
		return
	}
	results, err := h.quiz.ResultsFor(c.Request.Context(), session)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"session": session, "results": results})
}

// JoinRequest is the body for POST /competitions/:code/join and automatch.
type JoinRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
	Name     string `json:"name" binding:"required"`
}

// Join handles POST /competitions/:code/join.
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.svc.Join(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// AutoMatchRequest is the body for POST /competitions/automatch.
type AutoMatchRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
	Name     string `json:"name" binding:"required"`
	Subject  string `json:"subject"`
}

// AutoMatch handles POST /competitions/automatch. 404 means no opponent is
// waiting; the client then creates a competition and becomes the waiter.
func (h *Handler) AutoMatch(c *gin.Context) {
	var req AutoMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.svc.AutoMatch(c.Request.Context(), req.Subject, uuid.MustParse(req.Identity), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// AnswerRequest is the body for POST /competitions/:code/answer.
type AnswerRequest struct {
	Identity       string  `json:"identity" binding:"required,uuid"`
	QuestionIndex  *int    `json:"question_index" binding:"required"`
	SelectedOption *int    `json:"selected_option" binding:"required"`
	TimeTaken      float64 `json:"time_taken_seconds"`
}

// SubmitAnswer handles POST /competitions/:code/answer.
func (h *Handler) SubmitAnswer(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.quiz.SubmitAnswer(c.Request.Context(), c.Param("code"),
		uuid.MustParse(req.Identity), *req.QuestionIndex, *req.SelectedOption, req.TimeTaken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// IdentityRequest is the body for actions that only identify the actor.
type IdentityRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
}

// Complete handles POST /competitions/:code/complete. Any participant may
// finalize; the first call stamps completion, later ones re-read results.
func (h *Handler) Complete(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.core.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, ok := session.Participant(uuid.MustParse(req.Identity)); !ok {
		response.Forbidden(c, "not a participant of this competition")
		return
	}
	results, err := h.quiz.Complete(c.Request.Context(), session.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, results)
}

// Delete handles DELETE /competitions/:code (creator only).
func (h *Handler) Delete(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.core.Close(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
