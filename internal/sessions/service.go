package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/studyhive/backend/internal/apperr"
	"github.com/studyhive/backend/internal/models"
)

// Store is the persistence surface the session core needs. *Repository is
// the production implementation; tests substitute an in-memory fake.
type Store interface {
	Create(ctx context.Context, s *models.Session, host models.Participant) error
	GetByCode(ctx context.Context, code string) (*models.Session, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListActive(ctx context.Context, kind models.SessionKind, subject string, now time.Time, limit int) ([]*models.Session, error)
	FindWaitingCompetition(ctx context.Context, subject string, now time.Time) (*models.Session, error)

	AddParticipant(ctx context.Context, p models.Participant) error
	UpdateParticipantName(ctx context.Context, code string, identity uuid.UUID, name string) error
	RebindIdentity(ctx context.Context, code string, oldID, newID uuid.UUID) error
	RemoveParticipant(ctx context.Context, code string, identity uuid.UUID) error
	ToggleReady(ctx context.Context, code string, identity uuid.UUID) (bool, error)
	SetHost(ctx context.Context, code string, identity uuid.UUID) error
	Deactivate(ctx context.Context, code string) error

	UpdateTimer(ctx context.Context, code string, t models.Timer) error

	StartQuiz(ctx context.Context, code string, questions []models.Question, startedAt time.Time) error
	SetCurrentQuestion(ctx context.Context, code string, index int) error
	CompleteQuiz(ctx context.Context, code string, at time.Time) error
	InsertAnswerIfAbsent(ctx context.Context, a models.Answer) (bool, *models.Answer, error)
	ListAnswers(ctx context.Context, code string) ([]models.Answer, error)
	Score(ctx context.Context, code string, identity uuid.UUID) (int, error)

	SetSharedDocument(ctx context.Context, code, document string) error
	SetSharedNotes(ctx context.Context, code, notes string) error
	SetScrollPosition(ctx context.Context, code string, position float64) error
	AppendChat(ctx context.Context, code string, msg models.ChatMessage) error
	AppendSharedFile(ctx context.Context, code string, f models.SharedFile) error
}

// Options tunes the session service.
type Options struct {
	TTL                 time.Duration
	ListLimit           int
	DefaultTimerSeconds int
	CodeLength          int
	MaxCodeRetries      int
}

// Service is the participant lifecycle manager plus the shared timer and
// room content operations. Every request loads the record, validates against
// current state, applies one deterministic transition, and persists.
type Service struct {
	store     Store
	clock     clockwork.Clock
	logger    *zap.Logger
	roomCodes *CodeAllocator
	compCodes *CodeAllocator
	opts      Options
}

// NewService creates the session service.
func NewService(store Store, clock clockwork.Clock, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		clock:     clock,
		logger:    logger,
		roomCodes: NewCodeAllocator(store, "ROOM-", opts.CodeLength, opts.MaxCodeRetries),
		compCodes: NewCodeAllocator(store, "QZ-", opts.CodeLength, opts.MaxCodeRetries),
		opts:      opts,
	}
}

// Clock exposes the injected clock to sibling services.
func (s *Service) Clock() clockwork.Clock { return s.clock }

// Store exposes the underlying store to sibling services.
func (s *Service) Store() Store { return s.store }

// CreateParams describes a new session.
type CreateParams struct {
	Kind         models.SessionKind
	Name         string
	Subject      string
	Capacity     int // competitions; 0 = uncapped (rooms)
	VsBot        bool
	HostIdentity uuid.UUID
	HostName     string
	Questions    []models.Question
}

// Create allocates a code and persists a new session with the host as sole
// participant. A lost code race retries allocation; the conflict never
// reaches the caller.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Session, error) {
	if p.HostIdentity == uuid.Nil || p.HostName == "" {
		return nil, apperr.InvalidArgument("host identity and name are required")
	}
	allocator := s.roomCodes
	if p.Kind == models.KindCompetition {
		allocator = s.compCodes
	}
	now := s.clock.Now()
	for attempt := 0; attempt < s.opts.MaxCodeRetries; attempt++ {
		code, err := allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}
		session := &models.Session{
			Code:         code,
			Kind:         p.Kind,
			Name:         p.Name,
			Subject:      p.Subject,
			HostIdentity: p.HostIdentity,
			Capacity:     p.Capacity,
			VsBot:        p.VsBot,
			IsActive:     true,
			QuizStatus:   models.QuizWaiting,
			Questions:    p.Questions,
			CreatedAt:    now,
			ExpiresAt:    now.Add(s.opts.TTL),
		}
		host := models.Participant{
			SessionCode: code,
			Identity:    p.HostIdentity,
			DisplayName: p.HostName,
			JoinedAt:    now,
		}
		err = s.store.Create(ctx, session, host)
		if errors.Is(err, ErrDuplicateCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.Get(ctx, code)
	}
	return nil, apperr.ResourceExhausted("could not allocate a unique session code")
}

// live loads a session and treats inactive or expired records as not found.
func (s *Service) live(ctx context.Context, code string) (*models.Session, error) {
	session, err := s.store.GetByCode(ctx, NormalizeCode(code))
	if errors.Is(err, ErrNoRow) {
		return nil, apperr.NotFound("session not found")
	}
	if err != nil {
		return nil, err
	}
	if !session.IsActive || session.Expired(s.clock.Now()) {
		return nil, apperr.NotFound("session not found")
	}
	return session, nil
}

// Get returns the full session state, refreshing the shared timer on the
// way out. Polling clients call this on a fixed interval.
func (s *Service) Get(ctx context.Context, code string) (*models.Session, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if RefreshTimer(&session.Timer, s.clock.Now()) {
		if err := s.store.UpdateTimer(ctx, session.Code, session.Timer); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// List returns live sessions of a kind, newest first, capped.
func (s *Service) List(ctx context.Context, kind models.SessionKind, subject string) ([]*models.Session, error) {
	return s.store.ListActive(ctx, kind, subject, s.clock.Now(), s.opts.ListLimit)
}

// Join adds a participant. Rejoining with a known identity is a no-op that
// refreshes the display name; a known name under a fresh identity is rebound
// instead of duplicated (a client that regenerated its identity on reload).
func (s *Service) Join(ctx context.Context, code string, identity uuid.UUID, name string) (*models.Session, error) {
	if identity == uuid.Nil {
		return nil, apperr.InvalidArgument("identity is required")
	}
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}

	if existing, ok := session.Participant(identity); ok {
		if name != "" && name != existing.DisplayName {
			if err := s.store.UpdateParticipantName(ctx, session.Code, identity, name); err != nil {
				return nil, err
			}
		}
		return s.Get(ctx, session.Code)
	}

	if name != "" {
		for _, p := range session.Participants {
			if !p.IsBot && p.DisplayName == name {
				if err := s.store.RebindIdentity(ctx, session.Code, p.Identity, identity); err != nil {
					return nil, err
				}
				return s.Get(ctx, session.Code)
			}
		}
	}

	if session.Kind == models.KindCompetition {
		if session.QuizStatus != models.QuizWaiting {
			return nil, apperr.InvalidState("competition is not accepting entrants")
		}
		if session.Capacity > 0 && len(session.Participants) >= session.Capacity {
			return nil, apperr.InvalidState("competition is full")
		}
	}

	participant := models.Participant{
		SessionCode: session.Code,
		Identity:    identity,
		DisplayName: name,
		JoinedAt:    s.clock.Now(),
	}
	if err := s.store.AddParticipant(ctx, participant); err != nil {
		return nil, err
	}
	s.logger.Info("participant joined",
		zap.String("code", session.Code), zap.String("identity", identity.String()))
	return s.Get(ctx, session.Code)
}

// Leave removes a participant. Host authority transfers to the earliest
// joined remaining participant; an emptied session is deactivated.
func (s *Service) Leave(ctx context.Context, code string, identity uuid.UUID) (*models.Session, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, ok := session.Participant(identity); !ok {
		return session, nil
	}
	if err := s.store.RemoveParticipant(ctx, session.Code, identity); err != nil {
		return nil, err
	}

	var remaining []models.Participant
	for _, p := range session.Participants {
		if p.Identity != identity {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == 0 {
		if err := s.store.Deactivate(ctx, session.Code); err != nil {
			return nil, err
		}
		s.logger.Info("session emptied and deactivated", zap.String("code", session.Code))
		return nil, nil
	}
	if identity == session.HostIdentity {
		next := earliestJoined(remaining)
		if err := s.store.SetHost(ctx, session.Code, next.Identity); err != nil {
			return nil, err
		}
		s.logger.Info("host reassigned",
			zap.String("code", session.Code), zap.String("new_host", next.Identity.String()))
	}
	return s.Get(ctx, session.Code)
}

// earliestJoined returns the participant with the earliest join time;
// identity order breaks exact ties deterministically.
func earliestJoined(participants []models.Participant) models.Participant {
	best := participants[0]
	for _, p := range participants[1:] {
		if p.JoinedAt.Before(best.JoinedAt) ||
			(p.JoinedAt.Equal(best.JoinedAt) && p.Identity.String() < best.Identity.String()) {
			best = p
		}
	}
	return best
}

// ReadyState summarizes readiness after a toggle.
type ReadyState struct {
	Ready      bool `json:"ready"`
	AllReady   bool `json:"all_ready"`
	ReadyCount int  `json:"ready_count"`
	Total      int  `json:"total"`
}

// ToggleReady flips a participant's ready flag. Host readiness is derived,
// always true, and cannot be toggled.
func (s *Service) ToggleReady(ctx context.Context, code string, identity uuid.UUID) (*ReadyState, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, ok := session.Participant(identity); !ok {
		return nil, apperr.Forbidden("not a participant of this session")
	}
	if identity == session.HostIdentity {
		return nil, apperr.InvalidArgument("the host is always ready")
	}
	ready, err := s.store.ToggleReady(ctx, session.Code, identity)
	if errors.Is(err, ErrNoRow) {
		return nil, apperr.Forbidden("not a participant of this session")
	}
	if err != nil {
		return nil, err
	}
	session, err = s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	state := &ReadyState{Ready: ready, AllReady: session.AllNonHostReady(), Total: len(session.Participants)}
	for _, p := range session.Participants {
		if session.IsReady(p) {
			state.ReadyCount++
		}
	}
	return state, nil
}

// Close deactivates a session. Host only.
func (s *Service) Close(ctx context.Context, code string, identity uuid.UUID) error {
	session, err := s.live(ctx, code)
	if err != nil {
		return err
	}
	if identity != session.HostIdentity {
		return apperr.Forbidden("only the host can close this session")
	}
	return s.store.Deactivate(ctx, session.Code)
}

// StartTimer starts the shared countdown. Host only, gated on readiness and
// a minimum of two participants (a timer cannot run with only a host).
func (s *Service) StartTimer(ctx context.Context, code string, actor uuid.UUID, durationSeconds int) (*models.Timer, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if actor != session.HostIdentity {
		return nil, apperr.Forbidden("only the host can start the timer")
	}
	if len(session.Participants) < 2 {
		return nil, apperr.InvalidState("at least two participants are required")
	}
	if !session.AllNonHostReady() {
		return nil, apperr.InvalidState("all participants must be ready")
	}
	if durationSeconds <= 0 {
		durationSeconds = s.opts.DefaultTimerSeconds
	}
	timer := startedTimer(durationSeconds, s.clock.Now())
	if err := s.store.UpdateTimer(ctx, session.Code, timer); err != nil {
		return nil, err
	}
	return &timer, nil
}

// PauseTimer freezes the countdown at its current derived value.
func (s *Service) PauseTimer(ctx context.Context, code string) (*models.Timer, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	RefreshTimer(&session.Timer, s.clock.Now())
	session.Timer.IsRunning = false
	if err := s.store.UpdateTimer(ctx, session.Code, session.Timer); err != nil {
		return nil, err
	}
	return &session.Timer, nil
}

// ResetTimer stops the countdown and rearms it at the given duration.
func (s *Service) ResetTimer(ctx context.Context, code string, durationSeconds int) (*models.Timer, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if durationSeconds <= 0 {
		durationSeconds = s.opts.DefaultTimerSeconds
	}
	timer := models.Timer{DurationSeconds: durationSeconds, RemainingSeconds: durationSeconds}
	if err := s.store.UpdateTimer(ctx, session.Code, timer); err != nil {
		return nil, err
	}
	return &timer, nil
}

// TickTimer forces a refresh and persists the derived state.
func (s *Service) TickTimer(ctx context.Context, code string) (*models.Timer, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if RefreshTimer(&session.Timer, s.clock.Now()) {
		if err := s.store.UpdateTimer(ctx, session.Code, session.Timer); err != nil {
			return nil, err
		}
	}
	return &session.Timer, nil
}

// ContentUpdate carries optional shared-content fields; nil leaves a field
// untouched.
type ContentUpdate struct {
	Notes          *string  `json:"notes"`
	Document       *string  `json:"document"`
	ScrollPosition *float64 `json:"scroll_position"`
}

// UpdateContent applies a shared-content change to a room.
func (s *Service) UpdateContent(ctx context.Context, code string, identity uuid.UUID, update ContentUpdate) (*models.Session, error) {
	session, err := s.roomParticipant(ctx, code, identity)
	if err != nil {
		return nil, err
	}
	if update.Notes != nil {
		if err := s.store.SetSharedNotes(ctx, session.Code, *update.Notes); err != nil {
			return nil, err
		}
	}
	if update.Document != nil {
		if err := s.store.SetSharedDocument(ctx, session.Code, *update.Document); err != nil {
			return nil, err
		}
	}
	if update.ScrollPosition != nil {
		if err := s.store.SetScrollPosition(ctx, session.Code, *update.ScrollPosition); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, session.Code)
}

// AppendChat adds a chat message to a room.
func (s *Service) AppendChat(ctx context.Context, code string, identity uuid.UUID, text string) (*models.ChatMessage, error) {
	if text == "" {
		return nil, apperr.InvalidArgument("message text is required")
	}
	session, err := s.roomParticipant(ctx, code, identity)
	if err != nil {
		return nil, err
	}
	p, _ := session.Participant(identity)
	msg := models.ChatMessage{
		Identity:    identity,
		DisplayName: p.DisplayName,
		Text:        text,
		SentAt:      s.clock.Now(),
	}
	if err := s.store.AppendChat(ctx, session.Code, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AddSharedFile appends an uploaded file record to a room's shared list.
func (s *Service) AddSharedFile(ctx context.Context, code string, identity uuid.UUID, f models.SharedFile) (*models.SharedFile, error) {
	session, err := s.roomParticipant(ctx, code, identity)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendSharedFile(ctx, session.Code, f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Service) roomParticipant(ctx context.Context, code string, identity uuid.UUID) (*models.Session, error) {
	session, err := s.live(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.Kind != models.KindRoom {
		return nil, apperr.InvalidState("shared content is only available in rooms")
	}
	if _, ok := session.Participant(identity); !ok {
		return nil, apperr.Forbidden("not a participant of this session")
	}
	return session, nil
}
