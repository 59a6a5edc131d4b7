package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is a single multiple-choice question. Immutable once a quiz or
// competition starts.
type Question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"` // 2-4 entries
	CorrectOption int      `json:"correct_option"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Answer is one graded submission, append-only: at most one per
// (identity, question index) pair within a session.
type Answer struct {
	SessionCode      string    `json:"-"`
	Identity         uuid.UUID `json:"identity"`
	QuestionIndex    int       `json:"question_index"`
	SelectedOption   int       `json:"selected_option"`
	IsCorrect        bool      `json:"is_correct"`
	TimeTakenSeconds float64   `json:"time_taken_seconds"`
	AnsweredAt       time.Time `json:"answered_at"`
}

// ParticipantScore is a participant's answer sheet plus derived score.
type ParticipantScore struct {
	Identity    uuid.UUID `json:"identity"`
	DisplayName string    `json:"display_name"`
	Answers     []Answer  `json:"answers"`
	Score       int       `json:"score"`
	JoinedAt    time.Time `json:"joined_at"`
}
