package service

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomClosed     = errors.New("room is closed")
	ErrNotRoomHost    = errors.New("only the host may do this")
	ErrInvalidHostKey = errors.New("invalid host key")
	ErrNotParticipant = errors.New("not a participant of this room")
	ErrEmptyMenu      = errors.New("cannot share an empty menu")
	ErrInternalServer = errors.New("internal server error")
)
