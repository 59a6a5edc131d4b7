package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindNotFound, KindOf(NotFound("gone")))
	require.Equal(t, KindInvalidState, KindOf(InvalidState("nope")))
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("while joining: %w", Forbidden("not yours"))
	require.True(t, Is(wrapped, KindForbidden))
	require.False(t, Is(wrapped, KindNotFound))
}

func TestNewf(t *testing.T) {
	err := Newf(KindInvalidArgument, "question %d has no prompt", 3)
	require.Equal(t, "invalid_argument: question 3 has no prompt", err.Error())
	require.Equal(t, "question 3 has no prompt", err.Message)
}
