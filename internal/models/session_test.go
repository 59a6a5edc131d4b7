package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAllNonHostReady(t *testing.T) {
	host := uuid.New()
	s := &Session{HostIdentity: host}

	// A host alone is not "everyone ready": there is no one to wait for,
	// and nothing multi-party can start.
	s.Participants = []Participant{{Identity: host}}
	require.False(t, s.AllNonHostReady())

	member := uuid.New()
	s.Participants = append(s.Participants, Participant{Identity: member})
	require.False(t, s.AllNonHostReady())

	s.Participants[1].Ready = true
	require.True(t, s.AllNonHostReady())

	s.Participants = append(s.Participants, Participant{Identity: uuid.New()})
	require.False(t, s.AllNonHostReady())
}

func TestIsReadyHostDerived(t *testing.T) {
	host := uuid.New()
	s := &Session{HostIdentity: host}
	require.True(t, s.IsReady(Participant{Identity: host}))
	require.False(t, s.IsReady(Participant{Identity: uuid.New()}))
	require.True(t, s.IsReady(Participant{Identity: uuid.New(), Ready: true}))
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s := &Session{ExpiresAt: now.Add(time.Hour)}
	require.False(t, s.Expired(now))
	require.False(t, s.Expired(now.Add(time.Hour))) // boundary is inclusive-live
	require.True(t, s.Expired(now.Add(time.Hour+time.Second)))
}
