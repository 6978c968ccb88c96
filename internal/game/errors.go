package game

import "errors"

var (
	ErrAuthRequired   = errors.New("identity required")
	ErrRoomNotFound   = errors.New("room not found")
	ErrInvalidCode    = errors.New("invalid room code")
	ErrInvalidRole    = errors.New("invalid role")
	ErrAccessDenied   = errors.New("only the host may do this")
	ErrOutOfRange     = errors.New("number out of range")
	ErrAlreadyDrawn   = errors.New("number already drawn")
	ErrNotDrawn       = errors.New("number not drawn")
	ErrGameInProgress = errors.New("game in progress")
	ErrInvalidConfig  = errors.New("invalid room configuration")
	ErrExhausted      = errors.New("no numbers left to draw")
	ErrConflict       = errors.New("room changed concurrently, try again")
)
