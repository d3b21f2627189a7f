package ws

import (
	"errors"
	"time"

	"github.com/tarabish/tarneeb-server/internal/hub"
	"github.com/tarabish/tarneeb-server/internal/room"
	"github.com/tarabish/tarneeb-server/pkg/types"
)

// Stable error codes surfaced in the error envelope.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeUnknownType    = "UNKNOWN_TYPE"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeRoomExists     = "ROOM_EXISTS"
	CodeRoomFull       = "ROOM_FULL"
	CodeAlreadyInGame  = "ALREADY_IN_GAME"
	CodeAlreadyInRoom  = "ALREADY_IN_ROOM"
	CodeNotInRoom      = "NOT_IN_ROOM"
	CodeGameNotReady   = "GAME_NOT_READY"
	CodeActionRejected = "ACTION_REJECTED"
	CodeInternal       = "INTERNAL_ERROR"
)

func envelope(code, message string, details any) *types.ErrorEnvelope {
	return &types.ErrorEnvelope{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// normalize folds any failure into the structured envelope. Typed
// infrastructure errors keep their codes; anything unexpected becomes
// INTERNAL_ERROR with detail suppressed outside debug mode.
func normalize(err error, debug bool) *types.ErrorEnvelope {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		return envelope(CodeRoomFull, "room is full", nil)
	case errors.Is(err, room.ErrAlreadyInGame):
		return envelope(CodeAlreadyInGame, "game already in progress", nil)
	case errors.Is(err, room.ErrNotMember):
		return envelope(CodeNotInRoom, "player is not in this room", nil)
	case errors.Is(err, room.ErrNotReady):
		return envelope(CodeGameNotReady, "room is not ready", nil)
	case errors.Is(err, room.ErrRejected):
		return envelope(CodeActionRejected, "action not applied", nil)
	case errors.Is(err, hub.ErrRoomExists):
		return envelope(CodeRoomExists, "room id already in use", nil)
	default:
		env := envelope(CodeInternal, "internal error", nil)
		if debug {
			env.Details = err.Error()
		}
		return env
	}
}
