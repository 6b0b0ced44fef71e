package repository

import (
	"context"

	"github.com/wally0302/menu/internal/domain"
)

// ParticipantRepository stores the per-device participant records of a room.
type ParticipantRepository interface {
	// Find returns the participant for a device in a room, or
	// ErrParticipantNotFound.
	Find(ctx context.Context, roomCode, deviceID string) (*domain.Participant, error)

	// Create inserts a new participant record.
	Create(ctx context.Context, p *domain.Participant) error

	// UpdateName updates only the display name of an existing participant.
	// Rejoining must never reset a cart.
	UpdateName(ctx context.Context, roomCode, deviceID, name string) error

	// ReplaceCart overwrites the participant's cart wholesale. Writes are
	// whole-document, last write observed wins.
	ReplaceCart(ctx context.Context, roomCode, deviceID string, cart domain.Cart) error

	// ListByRoom returns all participants of a room ordered by join time.
	ListByRoom(ctx context.Context, roomCode string) ([]domain.Participant, error)
}
