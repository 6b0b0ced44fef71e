package repository

import (
	"context"

	"github.com/wally0302/menu/internal/domain"
)

// DeviceStateRepository persists per-device state that outlives a session:
// the local-mode cart and the last-used display name. Absence of saved
// state is not an error; implementations return zero values.
type DeviceStateRepository interface {
	SaveLocalCart(ctx context.Context, deviceID string, cart domain.Cart) error
	LoadLocalCart(ctx context.Context, deviceID string) (domain.Cart, error)

	SaveDisplayName(ctx context.Context, deviceID, name string) error
	LoadDisplayName(ctx context.Context, deviceID string) (string, error)
}
