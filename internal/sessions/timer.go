package sessions

import (
	"time"

	"github.com/studyhive/backend/internal/models"
)

// RefreshTimer recomputes remaining time from the start instant. There is no
// server-side tick; every read derives the countdown. Returns true when the
// stored fields changed and need to be persisted (the countdown reaching
// zero stops the timer as a side effect).
func RefreshTimer(t *models.Timer, now time.Time) bool {
	if !t.IsRunning || t.StartedAt == nil {
		return false
	}
	elapsed := int(now.Sub(*t.StartedAt).Seconds())
	remaining := t.DurationSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	changed := remaining != t.RemainingSeconds
	t.RemainingSeconds = remaining
	if remaining == 0 {
		t.IsRunning = false
		changed = true
	}
	return changed
}

func startedTimer(durationSeconds int, now time.Time) models.Timer {
	return models.Timer{
		IsRunning:        true,
		DurationSeconds:  durationSeconds,
		StartedAt:        &now,
		RemainingSeconds: durationSeconds,
	}
}
