// Package competitions implements 1-vs-1 and group quiz battles on top of
// the shared session core: creation with generated questions, FIFO
// matchmaking, join-triggered auto-start and synthetic opponents.
package competitions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/backend/internal/apperr"
	"github.com/studyhive/backend/internal/content"
	"github.com/studyhive/backend/internal/models"
	"github.com/studyhive/backend/internal/quiz"
	"github.com/studyhive/backend/internal/sessions"
)

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 20
)

// Service coordinates competition lifecycle and matchmaking.
type Service struct {
	core        *sessions.Service
	quiz        *quiz.Service
	generator   content.Generator
	opponent    *content.OpponentModel
	logger      *zap.Logger
	defaultSize int
}

// NewService creates the competition service.
func NewService(core *sessions.Service, quizSvc *quiz.Service, generator content.Generator, opponent *content.OpponentModel, logger *zap.Logger, defaultSize int) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultSize < 2 {
		defaultSize = 2
	}
	return &Service{
		core:        core,
		quiz:        quizSvc,
		generator:   generator,
		opponent:    opponent,
		logger:      logger,
		defaultSize: defaultSize,
	}
}

// CreateParams describes a new competition.
type CreateParams struct {
	Identity      uuid.UUID
	Name          string // creator display name
	Title         string
	Subject       string
	Material      string
	Capacity      int
	VsBot         bool
	QuestionCount int
	Questions     []models.Question // optional explicit list
}

// Create builds a competition with a frozen question list. A vs-bot
// competition seeds the opponent and starts immediately.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Session, error) {
	questions := p.Questions
	if len(questions) == 0 {
		n := p.QuestionCount
		if n <= 0 {
			n = defaultQuestionCount
		}
		if n > maxQuestionCount {
			n = maxQuestionCount
		}
		generated, err := s.generator.GenerateQuestions(ctx, p.Material, p.Subject, n)
		if err != nil {
			return nil, apperr.Newf(apperr.KindInvalidArgument, "question generation failed: %v", err)
		}
		questions = generated
	}
	if err := quiz.ValidateQuestions(questions); err != nil {
		return nil, err
	}

	capacity := p.Capacity
	if capacity <= 0 {
		capacity = s.defaultSize
	}
	session, err := s.core.Create(ctx, sessions.CreateParams{
		Kind:         models.KindCompetition,
		Name:         p.Title,
		Subject:      p.Subject,
		Capacity:     capacity,
		VsBot:        p.VsBot,
		HostIdentity: p.Identity,
		HostName:     p.Name,
		Questions:    questions,
	})
	if err != nil {
		return nil, err
	}
	if !p.VsBot {
		return session, nil
	}
	return s.seedOpponent(ctx, session)
}

// seedOpponent adds the synthetic participant, auto-starts, and pushes the
// scripted answers through the same submission path humans use.
func (s *Service) seedOpponent(ctx context.Context, session *models.Session) (*models.Session, error) {
	botID := uuid.New()
	bot := models.Participant{
		SessionCode: session.Code,
		Identity:    botID,
		DisplayName: s.opponent.Name(),
		IsBot:       true,
		JoinedAt:    s.core.Clock().Now(),
	}
	if err := s.core.Store().AddParticipant(ctx, bot); err != nil {
		return nil, err
	}
	started, err := s.quiz.AutoStart(ctx, session.Code)
	if err != nil {
		return nil, err
	}

	optionCounts := make([]int, len(started.Questions))
	correctOptions := make([]int, len(started.Questions))
	for i, q := range started.Questions {
		optionCounts[i] = len(q.Options)
		correctOptions[i] = q.CorrectOption
	}
	for _, a := range s.opponent.Script(optionCounts, correctOptions) {
		if _, err := s.quiz.SubmitAnswer(ctx, started.Code, botID, a.QuestionIndex, a.SelectedOption, a.TimeTakenSeconds); err != nil {
			s.logger.Warn("bot answer rejected", zap.Error(err), zap.String("code", started.Code))
		}
	}
	return s.core.Get(ctx, started.Code)
}

// Join adds an entrant. Reaching the configured capacity auto-starts the
// competition in the same operation; no explicit start call exists. The kind
// check happens before the participant write: a rejected join must leave the
// session untouched.
func (s *Service) Join(ctx context.Context, code string, identity uuid.UUID, name string) (*models.Session, error) {
	session, err := s.core.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.Kind != models.KindCompetition {
		return nil, apperr.InvalidState("not a competition")
	}
	session, err = s.core.Join(ctx, code, identity, name)
	if err != nil {
		return nil, err
	}
	if session.QuizStatus == models.QuizWaiting &&
		session.Capacity > 0 && len(session.Participants) >= session.Capacity {
		return s.quiz.AutoStart(ctx, session.Code)
	}
	return session, nil
}

// AutoMatch places the entrant into the oldest waiting 1-vs-1 competition,
// optionally filtered by subject. With no waiting opponent it returns
// not_found and the caller creates a new competition to become the waiter.
// Two callers probing an empty pool can both end up waiting; that duplicate
// is an accepted liveness gap, not a correctness problem.
func (s *Service) AutoMatch(ctx context.Context, subject string, identity uuid.UUID, name string) (*models.Session, error) {
	if identity == uuid.Nil {
		return nil, apperr.InvalidArgument("identity is required")
	}
	// A found competition can fill between the probe and the join; probe a
	// few times before telling the caller to create.
	for attempt := 0; attempt < 3; attempt++ {
		waiting, err := s.core.Store().FindWaitingCompetition(ctx, subject, s.core.Clock().Now())
		if errors.Is(err, sessions.ErrNoRow) {
			return nil, apperr.NotFound("no waiting opponent")
		}
		if err != nil {
			return nil, err
		}
		session, err := s.Join(ctx, waiting.Code, identity, name)
		if apperr.Is(err, apperr.KindInvalidState) || apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.logger.Info("matched",
			zap.String("code", session.Code), zap.String("identity", identity.String()))
		return session, nil
	}
	return nil, apperr.NotFound("no waiting opponent")
}
