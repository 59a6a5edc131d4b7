package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/backend/internal/apperr"
	"github.com/studyhive/backend/internal/models"
)

func newTestService(t *testing.T) (*Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	svc := NewService(NewMemStore(), clock, nil, Options{
		TTL:                 24 * time.Hour,
		ListLimit:           50,
		DefaultTimerSeconds: 1500,
		CodeLength:          6,
		MaxCodeRetries:      10,
	})
	return svc, clock
}

func createRoom(t *testing.T, svc *Service, host uuid.UUID) *models.Session {
	t.Helper()
	session, err := svc.Create(context.Background(), CreateParams{
		Kind:         models.KindRoom,
		Name:         "biology revision",
		Subject:      "biology",
		HostIdentity: host,
		HostName:     "Ada",
	})
	require.NoError(t, err)
	return session
}

func TestCreateAssignsCodeAndHost(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)

	require.Contains(t, session.Code, "ROOM-")
	require.Equal(t, host, session.HostIdentity)
	require.Len(t, session.Participants, 1)
	require.True(t, session.IsActive)
	require.Equal(t, models.QuizWaiting, session.QuizStatus)
}

func TestCreateRequiresHost(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), CreateParams{Kind: models.KindRoom, HostName: "Ada"})
	require.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestGetNormalizesCode(t *testing.T) {
	svc, _ := newTestService(t)
	session := createRoom(t, svc, uuid.New())

	got, err := svc.Get(context.Background(), " "+session.Code+" ")
	require.NoError(t, err)
	require.Equal(t, session.Code, got.Code)
}

func TestJoinRejoinIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	session := createRoom(t, svc, uuid.New())
	member := uuid.New()

	got, err := svc.Join(context.Background(), session.Code, member, "Grace")
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)

	got, err = svc.Join(context.Background(), session.Code, member, "Grace H")
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)
	p, ok := got.Participant(member)
	require.True(t, ok)
	require.Equal(t, "Grace H", p.DisplayName)
}

func TestJoinRebindsRegeneratedIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	session := createRoom(t, svc, uuid.New())
	oldID := uuid.New()
	_, err := svc.Join(context.Background(), session.Code, oldID, "Grace")
	require.NoError(t, err)

	// Same display name under a fresh identity: the client reloaded and
	// regenerated its UUID. The old participant is rebound, not duplicated.
	newID := uuid.New()
	got, err := svc.Join(context.Background(), session.Code, newID, "Grace")
	require.NoError(t, err)
	require.Len(t, got.Participants, 2)
	_, ok := got.Participant(newID)
	require.True(t, ok)
	_, ok = got.Participant(oldID)
	require.False(t, ok)
}

func TestJoinUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Join(context.Background(), "ROOM-ZZZZZZ", uuid.New(), "Grace")
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestExpiredSessionLooksMissing(t *testing.T) {
	svc, clock := newTestService(t)
	session := createRoom(t, svc, uuid.New())

	clock.Advance(25 * time.Hour)
	_, err := svc.Get(context.Background(), session.Code)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLeaveTransfersHostToEarliestJoined(t *testing.T) {
	svc, clock := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)

	second := uuid.New()
	_, err := svc.Join(context.Background(), session.Code, second, "Grace")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	third := uuid.New()
	_, err = svc.Join(context.Background(), session.Code, third, "Alan")
	require.NoError(t, err)

	got, err := svc.Leave(context.Background(), session.Code, host)
	require.NoError(t, err)
	require.Equal(t, second, got.HostIdentity)
	require.Len(t, got.Participants, 2)
}

func TestLeaveLastParticipantDeactivates(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)

	got, err := svc.Leave(context.Background(), session.Code, host)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = svc.Get(context.Background(), session.Code)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLeaveNonParticipantIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	session := createRoom(t, svc, uuid.New())

	got, err := svc.Leave(context.Background(), session.Code, uuid.New())
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
}

func TestToggleReady(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)
	member := uuid.New()
	_, err := svc.Join(context.Background(), session.Code, member, "Grace")
	require.NoError(t, err)

	state, err := svc.ToggleReady(context.Background(), session.Code, member)
	require.NoError(t, err)
	require.True(t, state.Ready)
	require.True(t, state.AllReady)
	require.Equal(t, 2, state.ReadyCount) // host readiness is derived

	state, err = svc.ToggleReady(context.Background(), session.Code, member)
	require.NoError(t, err)
	require.False(t, state.Ready)
	require.False(t, state.AllReady)
}

func TestToggleReadyHostRejected(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)

	_, err := svc.ToggleReady(context.Background(), session.Code, host)
	require.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestToggleReadyNonParticipant(t *testing.T) {
	svc, _ := newTestService(t)
	session := createRoom(t, svc, uuid.New())

	_, err := svc.ToggleReady(context.Background(), session.Code, uuid.New())
	require.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestStartTimerGates(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)

	// Alone: no timer.
	_, err := svc.StartTimer(context.Background(), session.Code, host, 300)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))

	member := uuid.New()
	_, err = svc.Join(context.Background(), session.Code, member, "Grace")
	require.NoError(t, err)

	// Not ready yet.
	_, err = svc.StartTimer(context.Background(), session.Code, host, 300)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))

	// Non-host cannot start.
	_, err = svc.StartTimer(context.Background(), session.Code, member, 300)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.ToggleReady(context.Background(), session.Code, member)
	require.NoError(t, err)

	timer, err := svc.StartTimer(context.Background(), session.Code, host, 300)
	require.NoError(t, err)
	require.True(t, timer.IsRunning)
	require.Equal(t, 300, timer.RemainingSeconds)
}

func TestTimerCountsDownOnRead(t *testing.T) {
	svc, clock := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)
	member := uuid.New()
	_, err := svc.Join(context.Background(), session.Code, member, "Grace")
	require.NoError(t, err)
	_, err = svc.ToggleReady(context.Background(), session.Code, member)
	require.NoError(t, err)
	_, err = svc.StartTimer(context.Background(), session.Code, host, 300)
	require.NoError(t, err)

	clock.Advance(120 * time.Second)
	got, err := svc.Get(context.Background(), session.Code)
	require.NoError(t, err)
	require.Equal(t, 180, got.Timer.RemainingSeconds)
	require.True(t, got.Timer.IsRunning)

	clock.Advance(10 * time.Minute)
	got, err = svc.Get(context.Background(), session.Code)
	require.NoError(t, err)
	require.Equal(t, 0, got.Timer.RemainingSeconds)
	require.False(t, got.Timer.IsRunning)
}

func TestPauseAndResetTimer(t *testing.T) {
	svc, clock := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)
	member := uuid.New()
	_, err := svc.Join(context.Background(), session.Code, member, "Grace")
	require.NoError(t, err)
	_, err = svc.ToggleReady(context.Background(), session.Code, member)
	require.NoError(t, err)
	_, err = svc.StartTimer(context.Background(), session.Code, host, 300)
	require.NoError(t, err)

	clock.Advance(60 * time.Second)
	timer, err := svc.PauseTimer(context.Background(), session.Code)
	require.NoError(t, err)
	require.False(t, timer.IsRunning)
	require.Equal(t, 240, timer.RemainingSeconds)

	// A paused timer does not drain.
	clock.Advance(time.Hour)
	got, err := svc.Get(context.Background(), session.Code)
	require.NoError(t, err)
	require.Equal(t, 240, got.Timer.RemainingSeconds)

	timer, err = svc.ResetTimer(context.Background(), session.Code, 600)
	require.NoError(t, err)
	require.False(t, timer.IsRunning)
	require.Equal(t, 600, timer.RemainingSeconds)
}

func TestCompetitionJoinCapacity(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session, err := svc.Create(context.Background(), CreateParams{
		Kind:         models.KindCompetition,
		Subject:      "math",
		Capacity:     2,
		HostIdentity: host,
		HostName:     "Ada",
		Questions:    []models.Question{{Prompt: "2+2?", Options: []string{"3", "4"}, CorrectOption: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), session.Code, uuid.New(), "Grace")
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), session.Code, uuid.New(), "Alan")
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestCloseHostOnly(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)
	member := uuid.New()
	_, err := svc.Join(context.Background(), session.Code, member, "Grace")
	require.NoError(t, err)

	err = svc.Close(context.Background(), session.Code, member)
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	require.NoError(t, svc.Close(context.Background(), session.Code, host))
	_, err = svc.Get(context.Background(), session.Code)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateContentAndChat(t *testing.T) {
	svc, _ := newTestService(t)
	host := uuid.New()
	session := createRoom(t, svc, host)

	notes := "chapter 4 summary"
	scroll := 0.42
	got, err := svc.UpdateContent(context.Background(), session.Code, host, ContentUpdate{Notes: &notes, ScrollPosition: &scroll})
	require.NoError(t, err)
	require.Equal(t, notes, got.SharedContent.Notes)
	require.Equal(t, scroll, got.SharedContent.ScrollPosition)

	msg, err := svc.AppendChat(context.Background(), session.Code, host, "hello")
	require.NoError(t, err)
	require.Equal(t, "Ada", msg.DisplayName)

	got, err = svc.Get(context.Background(), session.Code)
	require.NoError(t, err)
	require.Len(t, got.SharedContent.Chat, 1)
}

func TestContentRequiresRoomParticipant(t *testing.T) {
	svc, _ := newTestService(t)
	session := createRoom(t, svc, uuid.New())

	notes := "x"
	_, err := svc.UpdateContent(context.Background(), session.Code, uuid.New(), ContentUpdate{Notes: &notes})
	require.True(t, apperr.Is(err, apperr.KindForbidden))

	comp, err := svc.Create(context.Background(), CreateParams{
		Kind:         models.KindCompetition,
		Capacity:     2,
		HostIdentity: uuid.New(),
		HostName:     "Ada",
		Questions:    []models.Question{{Prompt: "q", Options: []string{"a", "b"}, CorrectOption: 0}},
	})
	require.NoError(t, err)
	_, err = svc.AppendChat(context.Background(), comp.Code, comp.HostIdentity, "hi")
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
}

func TestListFiltersKindAndSubject(t *testing.T) {
	svc, _ := newTestService(t)
	createRoom(t, svc, uuid.New())
	_, err := svc.Create(context.Background(), CreateParams{
		Kind:         models.KindRoom,
		Subject:      "math",
		HostIdentity: uuid.New(),
		HostName:     "Alan",
	})
	require.NoError(t, err)

	all, err := svc.List(context.Background(), models.KindRoom, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	math, err := svc.List(context.Background(), models.KindRoom, "math")
	require.NoError(t, err)
	require.Len(t, math, 1)

	comps, err := svc.List(context.Background(), models.KindCompetition, "")
	require.NoError(t, err)
	require.Empty(t, comps)
}
