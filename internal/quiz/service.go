// Package quiz implements the shared question sequencing, grading, scoring
// and completion logic used by room quizzes and standalone competitions.
package quiz

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyhive/backend/internal/apperr"
	"github.com/studyhive/backend/internal/models"
	"github.com/studyhive/backend/internal/sessions"
	"github.com/studyhive/backend/pkg/queue"
)

// Service drives the waiting → in-progress → completed state machine.
type Service struct {
	core   *sessions.Service
	store  sessions.Store
	queue  *queue.Queue
	logger *zap.Logger
}

// NewService creates the quiz service. The queue is optional; when present,
// completions enqueue notification/achievement jobs.
func NewService(core *sessions.Service, q *queue.Queue, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{core: core, store: core.Store(), queue: q, logger: logger}
}

// ValidateQuestions checks the 2-4 option shape and correct-index range.
func ValidateQuestions(questions []models.Question) error {
	if len(questions) == 0 {
		return apperr.InvalidArgument("at least one question is required")
	}
	for i, q := range questions {
		if q.Prompt == "" {
			return apperr.Newf(apperr.KindInvalidArgument, "question %d has no prompt", i)
		}
		if len(q.Options) < 2 || len(q.Options) > 4 {
			return apperr.Newf(apperr.KindInvalidArgument, "question %d must have 2-4 options", i)
		}
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			return apperr.Newf(apperr.KindInvalidArgument, "question %d has an out-of-range correct option", i)
		}
	}
	return nil
}

// Start transitions waiting → in-progress, freezing the question list.
// Host/creator only.
func (s *Service) Start(ctx context.Context, code string, actor uuid.UUID, questions []models.Question) (*models.Session, error) {
	session, err := s.core.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if actor != session.HostIdentity {
		return nil, apperr.Forbidden("only the host can start the quiz")
	}
	if session.QuizStatus != models.QuizWaiting {
		return nil, apperr.InvalidState("quiz has already started")
	}
	if session.Kind == models.KindRoom && !session.AllNonHostReady() {
		return nil, apperr.InvalidState("all participants must be ready")
	}
	if err := ValidateQuestions(questions); err != nil {
		return nil, err
	}
	if err := s.store.StartQuiz(ctx, session.Code, questions, s.core.Clock().Now()); err != nil {
		return nil, err
	}
	s.logger.Info("quiz started",
		zap.String("code", session.Code), zap.Int("questions", len(questions)))
	return s.core.Get(ctx, session.Code)
}

// AutoStart transitions a competition to in-progress without a host call,
// triggered when a join fills the configured capacity.
func (s *Service) AutoStart(ctx context.Context, code string) (*models.Session, error) {
	session, err := s.core.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.QuizStatus != models.QuizWaiting {
		return session, nil
	}
	if err := s.store.StartQuiz(ctx, session.Code, session.Questions, s.core.Clock().Now()); err != nil {
		return nil, err
	}
	s.logger.Info("competition auto-started", zap.String("code", session.Code))
	return s.core.Get(ctx, session.Code)
}

// AnswerResult is the grading outcome returned to the submitting client.
type AnswerResult struct {
	IsCorrect     bool   `json:"is_correct"`
	CorrectOption int    `json:"correct_option"`
	Explanation   string `json:"explanation,omitempty"`
	Score         int    `json:"score"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

// SubmitAnswer grades one submission. The append is conditional on the
// (identity, question index) pair being absent, so racing retries settle on
// a single graded row and never double-credit the score. A duplicate returns
// the previously computed result.
func (s *Service) SubmitAnswer(ctx context.Context, code string, identity uuid.UUID, questionIndex, selectedOption int, timeTaken float64) (*AnswerResult, error) {
	session, err := s.core.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.QuizStatus != models.QuizInProgress {
		return nil, apperr.InvalidState("quiz is not in progress")
	}
	if _, ok := session.Participant(identity); !ok {
		return nil, apperr.NotFound("no answer record for this participant")
	}
	if questionIndex < 0 || questionIndex >= len(session.Questions) {
		return nil, apperr.NotFound("unknown question index")
	}
	question := session.Questions[questionIndex]
	if selectedOption < 0 || selectedOption >= len(question.Options) {
		return nil, apperr.InvalidArgument("selected option is out of range")
	}

	answer := models.Answer{
		SessionCode:      session.Code,
		Identity:         identity,
		QuestionIndex:    questionIndex,
		SelectedOption:   selectedOption,
		IsCorrect:        selectedOption == question.CorrectOption,
		TimeTakenSeconds: timeTaken,
		AnsweredAt:       s.core.Clock().Now(),
	}
	inserted, recorded, err := s.store.InsertAnswerIfAbsent(ctx, answer)
	if err != nil {
		return nil, err
	}
	score, err := s.store.Score(ctx, session.Code, identity)
	if err != nil {
		return nil, err
	}
	return &AnswerResult{
		IsCorrect:     recorded.IsCorrect,
		CorrectOption: question.CorrectOption,
		Explanation:   question.Explanation,
		Score:         score,
		Duplicate:     !inserted,
	}, nil
}

// Advance moves the shared question pointer forward, or completes the quiz
// when the last question is already current. Host only.
func (s *Service) Advance(ctx context.Context, code string, actor uuid.UUID) (*models.Session, error) {
	session, err := s.core.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if actor != session.HostIdentity {
		return nil, apperr.Forbidden("only the host can advance the quiz")
	}
	if session.QuizStatus != models.QuizInProgress {
		return nil, apperr.InvalidState("quiz is not in progress")
	}
	if session.CurrentQuestion < len(session.Questions)-1 {
		if err := s.store.SetCurrentQuestion(ctx, session.Code, session.CurrentQuestion+1); err != nil {
			return nil, err
		}
		return s.core.Get(ctx, session.Code)
	}
	if err := s.store.CompleteQuiz(ctx, session.Code, s.core.Clock().Now()); err != nil {
		return nil, err
	}
	updated, err := s.core.Get(ctx, session.Code)
	if err != nil {
		return nil, err
	}
	s.publishCompletion(ctx, updated)
	return updated, nil
}

// Results holds final scores and the winner of a completed session.
type Results struct {
	Code        string                    `json:"code"`
	Status      models.QuizStatus         `json:"status"`
	Scores      []models.ParticipantScore `json:"scores"`
	Winner      *models.ParticipantScore  `json:"winner,omitempty"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
}

// Complete finishes a session explicitly and determines the winner.
func (s *Service) Complete(ctx context.Context, code string) (*Results, error) {
	session, err := s.core.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.QuizStatus == models.QuizWaiting {
		return nil, apperr.InvalidState("quiz has not started")
	}
	firstCompletion := session.QuizStatus != models.QuizCompleted
	if firstCompletion {
		if err := s.store.CompleteQuiz(ctx, session.Code, s.core.Clock().Now()); err != nil {
			return nil, err
		}
		session, err = s.core.Get(ctx, code)
		if err != nil {
			return nil, err
		}
	}
	results, err := s.ResultsFor(ctx, session)
	if err != nil {
		return nil, err
	}
	if firstCompletion {
		s.publishCompletion(ctx, session)
	}
	return results, nil
}

// ResultsFor builds the scoreboard for a session from its answer rows.
func (s *Service) ResultsFor(ctx context.Context, session *models.Session) (*Results, error) {
	answers, err := s.store.ListAnswers(ctx, session.Code)
	if err != nil {
		return nil, err
	}
	byIdentity := make(map[uuid.UUID][]models.Answer)
	for _, a := range answers {
		byIdentity[a.Identity] = append(byIdentity[a.Identity], a)
	}
	scores := make([]models.ParticipantScore, 0, len(session.Participants))
	for _, p := range session.Participants {
		ps := models.ParticipantScore{
			Identity:    p.Identity,
			DisplayName: p.DisplayName,
			Answers:     byIdentity[p.Identity],
			JoinedAt:    p.JoinedAt,
		}
		for _, a := range ps.Answers {
			if a.IsCorrect {
				ps.Score++
			}
		}
		scores = append(scores, ps)
	}
	SortScores(scores)
	results := &Results{
		Code:        session.Code,
		Status:      session.QuizStatus,
		Scores:      scores,
		CompletedAt: session.QuizCompletedAt,
	}
	if session.QuizStatus == models.QuizCompleted {
		results.Winner = DetermineWinner(scores)
	}
	return results, nil
}

// SortScores orders a scoreboard by score descending, ties by earliest join.
func SortScores(scores []models.ParticipantScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].JoinedAt.Before(scores[j].JoinedAt)
	})
}

// DetermineWinner picks the highest score; ties go to the earliest entrant.
// The tie-break is explicit, never an artifact of iteration order.
func DetermineWinner(scores []models.ParticipantScore) *models.ParticipantScore {
	if len(scores) == 0 {
		return nil
	}
	winner := scores[0]
	for _, ps := range scores[1:] {
		if ps.Score > winner.Score ||
			(ps.Score == winner.Score && ps.JoinedAt.Before(winner.JoinedAt)) {
			winner = ps
		}
	}
	return &winner
}

// publishCompletion hands the finished session to the background pipeline.
// Failures are logged, never surfaced: notifications are best-effort.
func (s *Service) publishCompletion(ctx context.Context, session *models.Session) {
	if s.queue == nil {
		return
	}
	results, err := s.ResultsFor(ctx, session)
	if err != nil {
		s.logger.Warn("completion results", zap.Error(err), zap.String("code", session.Code))
		return
	}
	payload := queue.SessionCompletedPayload{
		Code:    session.Code,
		Kind:    string(session.Kind),
		Subject: session.Subject,
	}
	for _, ps := range results.Scores {
		if winner := results.Winner; winner != nil && winner.Identity == ps.Identity {
			payload.WinnerIdentity = ps.Identity
		}
		payload.Participants = append(payload.Participants, queue.ParticipantResult{
			Identity: ps.Identity,
			Name:     ps.DisplayName,
			Score:    ps.Score,
		})
	}
	if err := s.queue.EnqueueSessionCompleted(ctx, payload); err != nil {
		s.logger.Warn("enqueue completion", zap.Error(err), zap.String("code", session.Code))
	}
}
