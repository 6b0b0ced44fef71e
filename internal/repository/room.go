package repository

import (
	"context"
	"time"

	"github.com/wally0302/menu/internal/domain"
)

// RoomRepository stores group-order rooms.
type RoomRepository interface {
	// FindByCode returns the room with the given join code, or
	// ErrRoomNotFound.
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// Save creates or updates a room. A primary-key collision surfaces as
	// ErrDuplicateEntry.
	Save(ctx context.Context, room *domain.Room) error

	// IsCodeTaken reports whether a join code is already in use. Creation is
	// not transactional against this check; with a 6-character, 32-symbol
	// alphabet the residual collision window is accepted.
	IsCodeTaken(ctx context.Context, code string) (bool, error)

	// DeleteWithParticipants removes every participant row under the room
	// and then the room row itself, in that order, within one transaction.
	// No reader may ever observe a participant for a missing room.
	DeleteWithParticipants(ctx context.Context, code string) error

	// FindStale returns codes of active rooms created before the cutoff.
	FindStale(ctx context.Context, cutoff time.Time) ([]string, error)
}
