package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a plain record produced by the worker when a quiz or
// competition finishes. Delivery is out of scope; clients poll.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Identity  uuid.UUID `json:"identity"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Achievement is a per-identity counter (quizzes completed, competitions
// won). Thresholds are evaluated by the worker.
type Achievement struct {
	Identity  uuid.UUID `json:"identity"`
	Metric    string    `json:"metric"`
	Value     int       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
