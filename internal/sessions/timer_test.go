package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studyhive/backend/internal/models"
)

func TestRefreshTimerStopped(t *testing.T) {
	timer := models.Timer{DurationSeconds: 300, RemainingSeconds: 300}
	require.False(t, RefreshTimer(&timer, time.Now()))
	require.Equal(t, 300, timer.RemainingSeconds)
}

func TestRefreshTimerDerivesRemaining(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	timer := startedTimer(300, start)

	require.True(t, RefreshTimer(&timer, start.Add(90*time.Second)))
	require.Equal(t, 210, timer.RemainingSeconds)
	require.True(t, timer.IsRunning)

	// Re-reading at the same instant changes nothing.
	require.False(t, RefreshTimer(&timer, start.Add(90*time.Second)))
}

func TestRefreshTimerAutoStopsAtZero(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	timer := startedTimer(300, start)

	require.True(t, RefreshTimer(&timer, start.Add(10*time.Minute)))
	require.Equal(t, 0, timer.RemainingSeconds)
	require.False(t, timer.IsRunning)
}

func TestRefreshTimerNeverNegative(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	timer := startedTimer(60, start)
	RefreshTimer(&timer, start.Add(24*time.Hour))
	require.Equal(t, 0, timer.RemainingSeconds)
}
