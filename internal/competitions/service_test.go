package competitions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/backend/internal/apperr"
	"github.com/studyhive/backend/internal/content"
	"github.com/studyhive/backend/internal/models"
	"github.com/studyhive/backend/internal/quiz"
	"github.com/studyhive/backend/internal/sessions"
)

func newTestServices(t *testing.T) (*Service, *sessions.Service, *quiz.Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	core := sessions.NewService(sessions.NewMemStore(), clock, nil, sessions.Options{
		TTL:            24 * time.Hour,
		ListLimit:      50,
		CodeLength:     6,
		MaxCodeRetries: 10,
	})
	quizSvc := quiz.NewService(core, nil, nil)
	svc := NewService(core, quizSvc, content.NewBankGenerator(7), content.NewOpponentModel(7, 60), nil, 2)
	return svc, core, quizSvc, clock
}

func TestCreateGeneratesQuestions(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	session, err := svc.Create(context.Background(), CreateParams{
		Identity: uuid.New(),
		Name:     "Ada",
		Subject:  "math",
	})
	require.NoError(t, err)
	require.Equal(t, models.KindCompetition, session.Kind)
	require.Contains(t, session.Code, "QZ-")
	require.Len(t, session.Questions, 5)
	require.Equal(t, 2, session.Capacity)
	require.Equal(t, models.QuizWaiting, session.QuizStatus)
	require.NoError(t, quiz.ValidateQuestions(session.Questions))
}

func TestCreateWithExplicitQuestions(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	questions := []models.Question{{Prompt: "2+2?", Options: []string{"3", "4"}, CorrectOption: 1}}
	session, err := svc.Create(context.Background(), CreateParams{
		Identity:  uuid.New(),
		Name:      "Ada",
		Questions: questions,
	})
	require.NoError(t, err)
	require.Len(t, session.Questions, 1)
}

func TestCreateRejectsBadQuestions(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	_, err := svc.Create(context.Background(), CreateParams{
		Identity:  uuid.New(),
		Name:      "Ada",
		Questions: []models.Question{{Prompt: "q", Options: []string{"only"}}},
	})
	require.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestJoinAutoStartsAtCapacity(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	session, err := svc.Create(context.Background(), CreateParams{Identity: uuid.New(), Name: "Ada"})
	require.NoError(t, err)

	joined, err := svc.Join(context.Background(), session.Code, uuid.New(), "Grace")
	require.NoError(t, err)
	require.Equal(t, models.QuizInProgress, joined.QuizStatus)
	require.Len(t, joined.Participants, 2)
}

func TestJoinRoomCodeLeavesRoomUntouched(t *testing.T) {
	svc, core, _, _ := newTestServices(t)
	room, err := core.Create(context.Background(), sessions.CreateParams{
		Kind:         models.KindRoom,
		HostIdentity: uuid.New(),
		HostName:     "Ada",
	})
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), room.Code, uuid.New(), "Grace")
	require.True(t, apperr.Is(err, apperr.KindInvalidState))

	// The rejected join must not have added a participant to the room.
	got, err := core.Get(context.Background(), room.Code)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
}

func TestVsBotStartsImmediately(t *testing.T) {
	svc, _, quizSvc, _ := newTestServices(t)
	session, err := svc.Create(context.Background(), CreateParams{
		Identity: uuid.New(),
		Name:     "Ada",
		VsBot:    true,
	})
	require.NoError(t, err)
	require.Equal(t, models.QuizInProgress, session.QuizStatus)
	require.Len(t, session.Participants, 2)

	var bot *models.Participant
	for i := range session.Participants {
		if session.Participants[i].IsBot {
			bot = &session.Participants[i]
		}
	}
	require.NotNil(t, bot)

	// The opponent has already answered every question through the normal
	// grading path.
	results, err := quizSvc.ResultsFor(context.Background(), session)
	require.NoError(t, err)
	for _, ps := range results.Scores {
		if ps.Identity == bot.Identity {
			require.Len(t, ps.Answers, len(session.Questions))
		}
	}
}

func TestAutoMatchJoinsOldestWaiting(t *testing.T) {
	svc, _, _, clock := newTestServices(t)

	older, err := svc.Create(context.Background(), CreateParams{Identity: uuid.New(), Name: "Ada"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.Create(context.Background(), CreateParams{Identity: uuid.New(), Name: "Grace"})
	require.NoError(t, err)

	matched, err := svc.AutoMatch(context.Background(), "", uuid.New(), "Alan")
	require.NoError(t, err)
	require.Equal(t, older.Code, matched.Code)
	require.Equal(t, models.QuizInProgress, matched.QuizStatus)
}

func TestAutoMatchSubjectFilter(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	_, err := svc.Create(context.Background(), CreateParams{Identity: uuid.New(), Name: "Ada", Subject: "history"})
	require.NoError(t, err)

	_, err = svc.AutoMatch(context.Background(), "math", uuid.New(), "Alan")
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	matched, err := svc.AutoMatch(context.Background(), "history", uuid.New(), "Alan")
	require.NoError(t, err)
	require.Equal(t, "history", matched.Subject)
}

func TestAutoMatchEmptyPool(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	_, err := svc.AutoMatch(context.Background(), "", uuid.New(), "Alan")
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAutoMatchSkipsVsBotAndFull(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	_, err := svc.Create(context.Background(), CreateParams{Identity: uuid.New(), Name: "Ada", VsBot: true})
	require.NoError(t, err)

	filled, err := svc.Create(context.Background(), CreateParams{Identity: uuid.New(), Name: "Grace"})
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), filled.Code, uuid.New(), "Alan")
	require.NoError(t, err)

	_, err = svc.AutoMatch(context.Background(), "", uuid.New(), "Edsger")
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}
