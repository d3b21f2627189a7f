package ws

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarabish/tarneeb-server/internal/hub"
	"github.com/tarabish/tarneeb-server/internal/room"
)

func TestNormalizeKnownErrors(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{room.ErrRoomFull, CodeRoomFull},
		{room.ErrAlreadyInGame, CodeAlreadyInGame},
		{room.ErrNotMember, CodeNotInRoom},
		{room.ErrNotReady, CodeGameNotReady},
		{room.ErrRejected, CodeActionRejected},
		{hub.ErrRoomExists, CodeRoomExists},
	}
	for _, tc := range tests {
		env := normalize(tc.err, false)
		require.Equal(t, tc.code, env.Code)
		require.NotEmpty(t, env.Message)
		require.Nil(t, env.Details)
		require.False(t, env.Timestamp.IsZero())
	}
}

func TestNormalizeWrappedError(t *testing.T) {
	wrapped := errors.Join(errors.New("joining room"), room.ErrRoomFull)
	require.Equal(t, CodeRoomFull, normalize(wrapped, false).Code)
}

func TestNormalizeUnknownError(t *testing.T) {
	boom := errors.New("pg connection refused")

	env := normalize(boom, false)
	require.Equal(t, CodeInternal, env.Code)
	require.Equal(t, "internal error", env.Message)
	require.Nil(t, env.Details, "internals stay hidden outside debug")

	env = normalize(boom, true)
	require.Equal(t, CodeInternal, env.Code)
	require.Equal(t, "pg connection refused", env.Details)
}
