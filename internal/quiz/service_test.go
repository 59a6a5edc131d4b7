package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/backend/internal/apperr"
	"github.com/studyhive/backend/internal/models"
	"github.com/studyhive/backend/internal/sessions"
)

var testQuestions = []models.Question{
	{Prompt: "2+2?", Options: []string{"3", "4", "5"}, CorrectOption: 1, Explanation: "basic addition"},
	{Prompt: "3*3?", Options: []string{"9", "6"}, CorrectOption: 0},
	{Prompt: "10/2?", Options: []string{"4", "5"}, CorrectOption: 1},
}

type fixture struct {
	core  *sessions.Service
	quiz  *Service
	clock *clockwork.FakeClock
	code  string
	host  uuid.UUID
	guest uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	core := sessions.NewService(sessions.NewMemStore(), clock, nil, sessions.Options{
		TTL:            24 * time.Hour,
		ListLimit:      50,
		CodeLength:     6,
		MaxCodeRetries: 10,
	})
	quizSvc := NewService(core, nil, nil)

	host := uuid.New()
	session, err := core.Create(context.Background(), sessions.CreateParams{
		Kind:         models.KindRoom,
		HostIdentity: host,
		HostName:     "Ada",
	})
	require.NoError(t, err)

	guest := uuid.New()
	_, err = core.Join(context.Background(), session.Code, guest, "Grace")
	require.NoError(t, err)
	_, err = core.ToggleReady(context.Background(), session.Code, guest)
	require.NoError(t, err)

	return &fixture{core: core, quiz: quizSvc, clock: clock, code: session.Code, host: host, guest: guest}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	_, err := f.quiz.Start(context.Background(), f.code, f.host, testQuestions)
	require.NoError(t, err)
}

func TestValidateQuestions(t *testing.T) {
	require.Error(t, ValidateQuestions(nil))
	require.Error(t, ValidateQuestions([]models.Question{{Prompt: "", Options: []string{"a", "b"}}}))
	require.Error(t, ValidateQuestions([]models.Question{{Prompt: "q", Options: []string{"a"}}}))
	require.Error(t, ValidateQuestions([]models.Question{{Prompt: "q", Options: []string{"a", "b", "c", "d", "e"}}}))
	require.Error(t, ValidateQuestions([]models.Question{{Prompt: "q", Options: []string{"a", "b"}, CorrectOption: 2}}))
	require.NoError(t, ValidateQuestions(testQuestions))
}

func TestStartHostOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.quiz.Start(context.Background(), f.code, f.guest, testQuestions)
	require.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestStartRequiresReadyRoom(t *testing.T) {
	f := newFixture(t)
	// Flip the guest back to not ready.
	_, err := f.core.ToggleReady(context.Background(), f.code, f.guest)
	require.NoError(t, err)

	_, err = f.quiz.Start(context.Background(), f.code, f.host, testQuestions)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestStartOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	_, err := f.quiz.Start(context.Background(), f.code, f.host, testQuestions)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestSubmitAnswerGrades(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	result, err := f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 0, 1, 3.5)
	require.NoError(t, err)
	require.True(t, result.IsCorrect)
	require.Equal(t, 1, result.CorrectOption)
	require.Equal(t, "basic addition", result.Explanation)
	require.Equal(t, 1, result.Score)
	require.False(t, result.Duplicate)

	result, err = f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 1, 1, 2.0)
	require.NoError(t, err)
	require.False(t, result.IsCorrect)
	require.Equal(t, 1, result.Score)
}

func TestSubmitAnswerIdempotent(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	first, err := f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 0, 1, 3.5)
	require.NoError(t, err)
	require.True(t, first.IsCorrect)

	// A retried submission, even with a different option, returns the
	// originally graded result and never changes the score.
	second, err := f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 0, 2, 9.9)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.True(t, second.IsCorrect)
	require.Equal(t, first.Score, second.Score)
}

func TestSubmitAnswerValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 0, 1, 1)
	require.True(t, apperr.Is(err, apperr.KindInvalidState)) // not started

	f.start(t)

	_, err = f.quiz.SubmitAnswer(context.Background(), f.code, uuid.New(), 0, 1, 1)
	require.True(t, apperr.Is(err, apperr.KindNotFound)) // not a participant

	_, err = f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 99, 1, 1)
	require.True(t, apperr.Is(err, apperr.KindNotFound)) // unknown question

	_, err = f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 0, 7, 1)
	require.True(t, apperr.Is(err, apperr.KindInvalidArgument)) // option range
}

func TestAdvanceWalksQuestionsAndCompletes(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	session, err := f.quiz.Advance(context.Background(), f.code, f.host)
	require.NoError(t, err)
	require.Equal(t, 1, session.CurrentQuestion)

	session, err = f.quiz.Advance(context.Background(), f.code, f.host)
	require.NoError(t, err)
	require.Equal(t, 2, session.CurrentQuestion)

	session, err = f.quiz.Advance(context.Background(), f.code, f.host)
	require.NoError(t, err)
	require.Equal(t, models.QuizCompleted, session.QuizStatus)
	require.NotNil(t, session.QuizCompletedAt)
}

func TestAdvanceHostOnly(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	_, err := f.quiz.Advance(context.Background(), f.code, f.guest)
	require.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestCompleteProducesScoreboard(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	// Guest answers everything right, host gets one.
	for i, q := range testQuestions {
		_, err := f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, i, q.CorrectOption, 1)
		require.NoError(t, err)
	}
	_, err := f.quiz.SubmitAnswer(context.Background(), f.code, f.host, 0, testQuestions[0].CorrectOption, 1)
	require.NoError(t, err)

	results, err := f.quiz.Complete(context.Background(), f.code)
	require.NoError(t, err)
	require.Equal(t, models.QuizCompleted, results.Status)
	require.Len(t, results.Scores, 2)
	require.Equal(t, 3, results.Scores[0].Score)
	require.Equal(t, "Grace", results.Scores[0].DisplayName)
	require.NotNil(t, results.Winner)
	require.Equal(t, f.guest, results.Winner.Identity)
	require.NotNil(t, results.CompletedAt)

	// Completing again re-reads results without re-stamping.
	again, err := f.quiz.Complete(context.Background(), f.code)
	require.NoError(t, err)
	require.Equal(t, results.CompletedAt.Unix(), again.CompletedAt.Unix())
}

func TestLeaverAnswersDormantUntilRejoin(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	_, err := f.quiz.SubmitAnswer(context.Background(), f.code, f.guest, 0, testQuestions[0].CorrectOption, 1)
	require.NoError(t, err)

	_, err = f.core.Leave(context.Background(), f.code, f.guest)
	require.NoError(t, err)

	// The scoreboard covers current participants only; the departed entrant's
	// graded rows are retained but invisible.
	session, err := f.core.Get(context.Background(), f.code)
	require.NoError(t, err)
	results, err := f.quiz.ResultsFor(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, results.Scores, 1)
	require.Equal(t, f.host, results.Scores[0].Identity)

	// Rejoining with the same identity reattaches the retained answers, so
	// the score resumes instead of resetting.
	_, err = f.core.Join(context.Background(), f.code, f.guest, "Grace")
	require.NoError(t, err)

	session, err = f.core.Get(context.Background(), f.code)
	require.NoError(t, err)
	results, err = f.quiz.ResultsFor(context.Background(), session)
	require.NoError(t, err)
	require.Len(t, results.Scores, 2)
	for _, ps := range results.Scores {
		if ps.Identity == f.guest {
			require.Equal(t, 1, ps.Score)
			require.Len(t, ps.Answers, 1)
		}
	}
}

func TestCompleteBeforeStart(t *testing.T) {
	f := newFixture(t)
	_, err := f.quiz.Complete(context.Background(), f.code)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestDetermineWinnerTieBreak(t *testing.T) {
	early := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)
	a := uuid.New()
	b := uuid.New()

	scores := []models.ParticipantScore{
		{Identity: a, Score: 2, JoinedAt: late},
		{Identity: b, Score: 2, JoinedAt: early},
	}
	winner := DetermineWinner(scores)
	require.NotNil(t, winner)
	require.Equal(t, b, winner.Identity)

	require.Nil(t, DetermineWinner(nil))
}

func TestSortScores(t *testing.T) {
	early := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	scores := []models.ParticipantScore{
		{DisplayName: "low", Score: 1, JoinedAt: early},
		{DisplayName: "tied-late", Score: 3, JoinedAt: early.Add(time.Minute)},
		{DisplayName: "tied-early", Score: 3, JoinedAt: early},
	}
	SortScores(scores)
	require.Equal(t, "tied-early", scores[0].DisplayName)
	require.Equal(t, "tied-late", scores[1].DisplayName)
	require.Equal(t, "low", scores[2].DisplayName)
}
