package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studyhive/backend/internal/models"
)

// MemStore is an in-memory Store used by tests and local development. It
// mirrors the repository's semantics, including the conditional answer insert.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	answers  map[string][]models.Answer
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*models.Session),
		answers:  make(map[string][]models.Answer),
	}
}

func cloneSession(s *models.Session) *models.Session {
	out := *s
	out.Questions = append([]models.Question(nil), s.Questions...)
	out.Participants = append([]models.Participant(nil), s.Participants...)
	if s.SharedContent != nil {
		content := *s.SharedContent
		content.Files = append([]models.SharedFile(nil), s.SharedContent.Files...)
		content.Chat = append([]models.ChatMessage(nil), s.SharedContent.Chat...)
		out.SharedContent = &content
	}
	return &out
}

// Create stores a session with its host as sole participant.
func (m *MemStore) Create(_ context.Context, s *models.Session, host models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.Code]; ok {
		return ErrDuplicateCode
	}
	stored := cloneSession(s)
	stored.Participants = []models.Participant{host}
	if stored.Kind == models.KindRoom && stored.SharedContent == nil {
		stored.SharedContent = &models.SharedContent{}
	}
	m.sessions[s.Code] = stored
	return nil
}

// GetByCode returns a copy of the stored session.
func (m *MemStore) GetByCode(_ context.Context, code string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[code]
	if !ok {
		return nil, ErrNoRow
	}
	return cloneSession(s), nil
}

// CodeExists reports whether a code is taken.
func (m *MemStore) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[code]
	return ok, nil
}

// ListActive returns live sessions of a kind, newest first.
func (m *MemStore) ListActive(_ context.Context, kind models.SessionKind, subject string, now time.Time, limit int) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Session
	for _, s := range m.sessions {
		if s.Kind != kind || !s.IsActive || s.Expired(now) {
			continue
		}
		if subject != "" && s.Subject != subject {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindWaitingCompetition returns the oldest waiting two-seat competition with
// a single human entrant.
func (m *MemStore) FindWaitingCompetition(_ context.Context, subject string, now time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Session
	for _, s := range m.sessions {
		if s.Kind != models.KindCompetition || !s.IsActive || s.Expired(now) {
			continue
		}
		if s.QuizStatus != models.QuizWaiting || s.Capacity != 2 || s.VsBot {
			continue
		}
		if len(s.Participants) != 1 {
			continue
		}
		if subject != "" && s.Subject != subject {
			continue
		}
		if best == nil || s.CreatedAt.Before(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, ErrNoRow
	}
	return cloneSession(best), nil
}

func (m *MemStore) locked(code string) (*models.Session, error) {
	s, ok := m.sessions[code]
	if !ok {
		return nil, ErrNoRow
	}
	return s, nil
}

// AddParticipant appends a participant.
func (m *MemStore) AddParticipant(_ context.Context, p models.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(p.SessionCode)
	if err != nil {
		return err
	}
	s.Participants = append(s.Participants, p)
	return nil
}

// UpdateParticipantName renames a participant.
func (m *MemStore) UpdateParticipantName(_ context.Context, code string, identity uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	for i := range s.Participants {
		if s.Participants[i].Identity == identity {
			s.Participants[i].DisplayName = name
			return nil
		}
	}
	return ErrNoRow
}

// RebindIdentity moves a participant and their answers to a new identity.
func (m *MemStore) RebindIdentity(_ context.Context, code string, oldID, newID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	for i := range s.Participants {
		if s.Participants[i].Identity == oldID {
			s.Participants[i].Identity = newID
		}
	}
	answers := m.answers[code]
	for i := range answers {
		if answers[i].Identity == oldID {
			answers[i].Identity = newID
		}
	}
	if s.HostIdentity == oldID {
		s.HostIdentity = newID
	}
	return nil
}

// RemoveParticipant drops a participant, keeping their answers.
func (m *MemStore) RemoveParticipant(_ context.Context, code string, identity uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	kept := s.Participants[:0]
	for _, p := range s.Participants {
		if p.Identity != identity {
			kept = append(kept, p)
		}
	}
	s.Participants = kept
	return nil
}

// ToggleReady flips the ready flag and returns the new value.
func (m *MemStore) ToggleReady(_ context.Context, code string, identity uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return false, err
	}
	for i := range s.Participants {
		if s.Participants[i].Identity == identity {
			s.Participants[i].Ready = !s.Participants[i].Ready
			return s.Participants[i].Ready, nil
		}
	}
	return false, ErrNoRow
}

// SetHost reassigns host authority.
func (m *MemStore) SetHost(_ context.Context, code string, identity uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	s.HostIdentity = identity
	return nil
}

// Deactivate marks a session inactive.
func (m *MemStore) Deactivate(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	s.IsActive = false
	return nil
}

// UpdateTimer replaces the timer state.
func (m *MemStore) UpdateTimer(_ context.Context, code string, t models.Timer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	s.Timer = t
	return nil
}

// StartQuiz freezes the question list and moves to in-progress.
func (m *MemStore) StartQuiz(_ context.Context, code string, questions []models.Question, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	s.Questions = append([]models.Question(nil), questions...)
	s.QuizStatus = models.QuizInProgress
	s.CurrentQuestion = 0
	s.QuizStartedAt = &startedAt
	return nil
}

// SetCurrentQuestion moves the shared question pointer.
func (m *MemStore) SetCurrentQuestion(_ context.Context, code string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	s.CurrentQuestion = index
	return nil
}

// CompleteQuiz stamps completion.
func (m *MemStore) CompleteQuiz(_ context.Context, code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.locked(code)
	if err != nil {
		return err
	}
	s.QuizStatus = models.QuizCompleted
	s.QuizCompletedAt = &at
	return nil
}

// InsertAnswerIfAbsent appends the answer unless the (identity, question)
// pair already has one, returning the recorded row either way.
func (m *MemStore) InsertAnswerIfAbsent(_ context.Context, a models.Answer) (bool, *models.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.locked(a.SessionCode); err != nil {
		return false, nil, err
	}
	for _, existing := range m.answers[a.SessionCode] {
		if existing.Identity == a.Identity && existing.QuestionIndex == a.QuestionIndex {
			recorded := existing
			return false, &recorded, nil
		}
	}
	m.answers[a.SessionCode] = append(m.answers[a.SessionCode], a)
	recorded := a
	return true, &recorded, nil
}

// ListAnswers returns all answers for a session.
func (m *MemStore) ListAnswers(_ context.Context, code string) ([]models.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Answer(nil), m.answers[code]...), nil
}

// Score counts a participant's correct answers.
func (m *MemStore) Score(_ context.Context, code string, identity uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score := 0
	for _, a := range m.answers[code] {
		if a.Identity == identity && a.IsCorrect {
			score++
		}
	}
	return score, nil
}

func (m *MemStore) content(code string) (*models.SharedContent, error) {
	s, err := m.locked(code)
	if err != nil {
		return nil, err
	}
	if s.SharedContent == nil {
		s.SharedContent = &models.SharedContent{}
	}
	return s.SharedContent, nil
}

// SetSharedDocument replaces the shared document.
func (m *MemStore) SetSharedDocument(_ context.Context, code, document string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := m.content(code)
	if err != nil {
		return err
	}
	content.Document = document
	return nil
}

// SetSharedNotes replaces the shared notes.
func (m *MemStore) SetSharedNotes(_ context.Context, code, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := m.content(code)
	if err != nil {
		return err
	}
	content.Notes = notes
	return nil
}

// SetScrollPosition replaces the shared scroll position.
func (m *MemStore) SetScrollPosition(_ context.Context, code string, position float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := m.content(code)
	if err != nil {
		return err
	}
	content.ScrollPosition = position
	return nil
}

// AppendChat appends a chat message.
func (m *MemStore) AppendChat(_ context.Context, code string, msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := m.content(code)
	if err != nil {
		return err
	}
	content.Chat = append(content.Chat, msg)
	return nil
}

// AppendSharedFile appends a shared file record.
func (m *MemStore) AppendSharedFile(_ context.Context, code string, f models.SharedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, err := m.content(code)
	if err != nil {
		return err
	}
	content.Files = append(content.Files, f)
	return nil
}
