package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionKind distinguishes study rooms from competitions.
type SessionKind string

const (
	KindRoom        SessionKind = "room"
	KindCompetition SessionKind = "competition"
)

// QuizStatus is the quiz/competition lifecycle state.
type QuizStatus string

const (
	QuizWaiting    QuizStatus = "waiting"
	QuizInProgress QuizStatus = "in-progress"
	QuizCompleted  QuizStatus = "completed"
)

// Session is the unit of coordination: a study room or a competition.
// One row per session, keyed by its normalized share code.
type Session struct {
	Code         string      `json:"code"`
	Kind         SessionKind `json:"kind"`
	Name         string      `json:"name,omitempty"`
	Subject      string      `json:"subject,omitempty"`
	HostIdentity uuid.UUID   `json:"host_identity"`
	Capacity     int         `json:"capacity,omitempty"` // 0 = uncapped (rooms)
	VsBot        bool        `json:"vs_bot,omitempty"`
	IsActive     bool        `json:"is_active"`

	QuizStatus      QuizStatus `json:"quiz_status"`
	CurrentQuestion int        `json:"current_question"`
	Questions       []Question `json:"questions,omitempty"`
	QuizStartedAt   *time.Time `json:"quiz_started_at,omitempty"`
	QuizCompletedAt *time.Time `json:"quiz_completed_at,omitempty"`

	Timer Timer `json:"timer"`

	SharedContent *SharedContent `json:"shared_content,omitempty"` // rooms only

	Participants []Participant `json:"participants,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Participant is a member of a session, unique by identity within it.
type Participant struct {
	SessionCode string    `json:"-"`
	Identity    uuid.UUID `json:"identity"`
	DisplayName string    `json:"display_name"`
	IsBot       bool      `json:"is_bot,omitempty"`
	Ready       bool      `json:"ready"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Timer is the shared countdown. Remaining time is recomputed from
// StartedAt on every read; nothing ticks server-side.
type Timer struct {
	IsRunning        bool       `json:"is_running"`
	DurationSeconds  int        `json:"duration_seconds"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
}

// SharedContent is the room-only collaborative state.
type SharedContent struct {
	Document       string        `json:"document,omitempty"`
	Files          []SharedFile  `json:"files"`
	Notes          string        `json:"notes,omitempty"`
	Chat           []ChatMessage `json:"chat"`
	ScrollPosition float64       `json:"scroll_position"`
}

// SharedFile is an S3-backed file shared with a room.
type SharedFile struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Key        string    `json:"key"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChatMessage is one entry in a room's chat log.
type ChatMessage struct {
	Identity    uuid.UUID `json:"identity"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

// IsReady reports effective readiness: the host is always ready.
func (s *Session) IsReady(p Participant) bool {
	return p.Identity == s.HostIdentity || p.Ready
}

// AllNonHostReady is true iff at least one non-host participant exists and
// every non-host participant is ready. Gates timer and quiz start in rooms.
func (s *Session) AllNonHostReady() bool {
	nonHost := 0
	for _, p := range s.Participants {
		if p.Identity == s.HostIdentity {
			continue
		}
		nonHost++
		if !p.Ready {
			return false
		}
	}
	return nonHost > 0
}

// Participant returns the participant with the given identity, if present.
func (s *Session) Participant(identity uuid.UUID) (Participant, bool) {
	for _, p := range s.Participants {
		if p.Identity == identity {
			return p, true
		}
	}
	return Participant{}, false
}

// Expired reports whether the session is past its TTL at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
