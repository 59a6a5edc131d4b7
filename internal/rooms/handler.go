// Package rooms exposes the study room HTTP surface: lifecycle, shared
// timer, shared content and in-room quizzes. All state changes are observed
// by clients re-polling the read endpoint.
package rooms

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/backend/internal/apperr"
	"github.com/studyhive/backend/internal/content"
	"github.com/studyhive/backend/internal/models"
	"github.com/studyhive/backend/internal/quiz"
	"github.com/studyhive/backend/internal/sessions"
	"github.com/studyhive/backend/pkg/response"
	"github.com/studyhive/backend/pkg/storage"
)

// Handler handles room HTTP endpoints.
type Handler struct {
	core      *sessions.Service
	quiz      *quiz.Service
	generator content.Generator
	s3        *storage.S3
	logger    *zap.Logger
}

// NewHandler creates a rooms handler. s3 may be nil when file sharing is
// disabled.
func NewHandler(core *sessions.Service, quizSvc *quiz.Service, generator content.Generator, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{core: core, quiz: quizSvc, generator: generator, s3: s3, logger: logger}
}

// CreateRequest is the body for POST /rooms.
type CreateRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
	Name     string `json:"name" binding:"required"`
	RoomName string `json:"room_name"`
	Subject  string `json:"subject"`
}

// Create handles POST /rooms.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.core.Create(c.Request.Context(), sessions.CreateParams{
		Kind:         models.KindRoom,
		Name:         req.RoomName,
		Subject:      req.Subject,
		HostIdentity: uuid.MustParse(req.Identity),
		HostName:     req.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List handles GET /rooms.
func (h *Handler) List(c *gin.Context) {
	list, err := h.core.List(c.Request.Context(), models.KindRoom, c.Query("subject"))
	if err != nil {
		response.Internal(c, "failed to list rooms")
		return
	}
	response.OK(c, sessions.Summarize(list))
}

// Get handles GET /rooms/:code. The poll endpoint; refreshes the timer.
func (h *Handler) Get(c *gin.Context) {
	session, err := h.core.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// JoinRequest is the body for POST /rooms/:code/join.
type JoinRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
	Name     string `json:"name" binding:"required"`
}

// Join handles POST /rooms/:code/join.
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.core.Join(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// IdentityRequest is the body for actions that only identify the actor.
type IdentityRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
}

// Leave handles POST /rooms/:code/leave.
func (h *Handler) Leave(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.core.Leave(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity))
	if err != nil {
		response.Error(c, err)
		return
	}
	if session == nil {
		response.OK(c, gin.H{"left": true, "deactivated": true})
		return
	}
	response.OK(c, gin.H{"left": true, "session": session})
}

// ToggleReady handles POST /rooms/:code/ready.
func (h *Handler) ToggleReady(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	state, err := h.core.ToggleReady(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, state)
}

// TimerRequest is the body for POST /rooms/:code/timer.
type TimerRequest struct {
	Identity        string `json:"identity" binding:"required,uuid"`
	Action          string `json:"action" binding:"required,oneof=start pause reset tick"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Timer handles POST /rooms/:code/timer.
func (h *Handler) Timer(c *gin.Context) {
	var req TimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	code := c.Param("code")
	var (
		timer *models.Timer
		err   error
	)
	switch req.Action {
	case "start":
		timer, err = h.core.StartTimer(c.Request.Context(), code, uuid.MustParse(req.Identity), req.DurationSeconds)
	case "pause":
		timer, err = h.core.PauseTimer(c.Request.Context(), code)
	case "reset":
		timer, err = h.core.ResetTimer(c.Request.Context(), code, req.DurationSeconds)
	case "tick":
		timer, err = h.core.TickTimer(c.Request.Context(), code)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, timer)
}

// StartQuizRequest is the body for POST /rooms/:code/quiz/start. Explicit
// questions win; otherwise the generator builds them from subject/material.
type StartQuizRequest struct {
	Identity      string            `json:"identity" binding:"required,uuid"`
	Questions     []models.Question `json:"questions"`
	Subject       string            `json:"subject"`
	Material      string            `json:"material"`
	QuestionCount int               `json:"question_count"`
}

// StartQuiz handles POST /rooms/:code/quiz/start (host only).
func (h *Handler) StartQuiz(c *gin.Context) {
	var req StartQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	questions := req.Questions
	if len(questions) == 0 {
		n := req.QuestionCount
		if n <= 0 {
			n = 5
		}
		generated, err := h.generator.GenerateQuestions(c.Request.Context(), req.Material, req.Subject, n)
		if err != nil {
			response.Error(c, apperr.Newf(apperr.KindInvalidArgument, "question generation failed: %v", err))
			return
		}
		questions = generated
	}
	session, err := h.quiz.Start(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity), questions)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// AnswerRequest is the body for POST /rooms/:code/quiz/answer. The option
// index is a pointer so a missing field is rejected rather than graded as 0.
type AnswerRequest struct {
	Identity       string  `json:"identity" binding:"required,uuid"`
	QuestionIndex  *int    `json:"question_index" binding:"required"`
	SelectedOption *int    `json:"selected_option" binding:"required"`
	TimeTaken      float64 `json:"time_taken_seconds"`
}

// SubmitAnswer handles POST /rooms/:code/quiz/answer.
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

// AdvanceQuiz handles POST /rooms/:code/quiz/advance (host only).
func (h *Handler) AdvanceQuiz(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.quiz.Advance(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Delete handles DELETE /rooms/:code (host only).
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

// ContentRequest is the body for POST /rooms/:code/content.
type ContentRequest struct {
	Identity       string   `json:"identity" binding:"required,uuid"`
	Notes          *string  `json:"notes"`
	Document       *string  `json:"document"`
	ScrollPosition *float64 `json:"scroll_position"`
}

// UpdateContent handles POST /rooms/:code/content.
func (h *Handler) UpdateContent(c *gin.Context) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	session, err := h.core.UpdateContent(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity),
		sessions.ContentUpdate{Notes: req.Notes, Document: req.Document, ScrollPosition: req.ScrollPosition})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// ChatRequest is the body for POST /rooms/:code/chat.
type ChatRequest struct {
	Identity string `json:"identity" binding:"required,uuid"`
	Text     string `json:"text" binding:"required"`
}

// Chat handles POST /rooms/:code/chat.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	msg, err := h.core.AppendChat(c.Request.Context(), c.Param("code"), uuid.MustParse(req.Identity), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// UploadFile handles POST /rooms/:code/files (multipart: identity, file).
func (h *Handler) UploadFile(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "file sharing is not configured")
		return
	}
	identity, err := uuid.Parse(c.PostForm("identity"))
	if err != nil {
		response.BadRequest(c, "invalid identity")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	if fileHeader.Size > storage.MaxSharedFileSize {
		response.BadRequest(c, "file too large")
		return
	}
	if !storage.ValidateFileType(fileHeader.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Internal(c, "failed to read upload")
		return
	}
	defer src.Close()

	code := sessions.NormalizeCode(c.Param("code"))
	fileID := uuid.New()
	key := storage.SharedFileKey(code, fileID.String(), fileHeader.Filename)
	contentType := storage.ContentTypeForFilename(fileHeader.Filename)
	if err := h.s3.Upload(c.Request.Context(), key, contentType, src, fileHeader.Size); err != nil {
		h.logger.Error("shared file upload", zap.Error(err), zap.String("code", code))
		response.Internal(c, "failed to store file")
		return
	}

	record := models.SharedFile{
		ID:         fileID,
		Name:       fileHeader.Filename,
		Key:        key,
		SizeBytes:  fileHeader.Size,
		UploadedBy: identity,
		UploadedAt: h.core.Clock().Now(),
	}
	stored, err := h.core.AddSharedFile(c.Request.Context(), code, identity, record)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stored)
}

// FileURL handles GET /rooms/:code/files/:fileId/url.
func (h *Handler) FileURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "file sharing is not configured")
		return
	}
	fileID, err := uuid.Parse(c.Param("fileId"))
	if err != nil {
		response.BadRequest(c, "invalid file id")
		return
	}
	session, err := h.core.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if session.SharedContent == nil {
		response.NotFound(c, "file not found")
		return
	}
	for _, f := range session.SharedContent.Files {
		if f.ID == fileID {
			url, err := h.s3.PresignDownloadURL(c.Request.Context(), f.Key)
			if err != nil {
				response.Internal(c, "failed to sign download url")
				return
			}
			response.OK(c, gin.H{"url": url, "expires_in_seconds": int(h.s3.PresignExpire().Seconds())})
			return
		}
	}
	response.NotFound(c, "file not found")
}
