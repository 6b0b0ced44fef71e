package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
)

// GormParticipantRepository is the GORM implementation of
// ParticipantRepository.
type GormParticipantRepository struct {
	db *gorm.DB
}

func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipantRepository")
	}
	return &GormParticipantRepository{db: db}
}

func (r *GormParticipantRepository) Find(ctx context.Context, roomCode, deviceID string) (*domain.Participant, error) {
	var p domain.Participant
	err := r.db.WithContext(ctx).
		First(&p, "room_code = ? AND device_id = ?", roomCode, deviceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("gorm: find participant '%s' in room '%s': %w", deviceID, roomCode, err)
	}
	return &p, nil
}

func (r *GormParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create participant '%s' in room '%s': %w", p.DeviceID, p.RoomCode, err)
	}
	return nil
}

// UpdateName touches only the name column: the cart of a rejoining device
// must survive untouched.
func (r *GormParticipantRepository) UpdateName(ctx context.Context, roomCode, deviceID, name string) error {
	result := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("room_code = ? AND device_id = ?", roomCode, deviceID).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("gorm: update participant name in room '%s': %w", roomCode, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrParticipantNotFound
	}
	return nil
}

func (r *GormParticipantRepository) ReplaceCart(ctx context.Context, roomCode, deviceID string, cart domain.Cart) error {
	result := r.db.WithContext(ctx).Model(&domain.Participant{}).
		Where("room_code = ? AND device_id = ?", roomCode, deviceID).
		Update("cart", cart.Clone())
	if result.Error != nil {
		return fmt.Errorf("gorm: replace cart for '%s' in room '%s': %w", deviceID, roomCode, result.Error)
	}
	// RowsAffected is 0 both for a missing row and for an identical cart
	// (MySQL skips no-op updates), so existence is checked by the caller.
	return nil
}

func (r *GormParticipantRepository) ListByRoom(ctx context.Context, roomCode string) ([]domain.Participant, error) {
	var parts []domain.Participant
	err := r.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("joined_at ASC").
		Find(&parts).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list participants of room '%s': %w", roomCode, err)
	}
	return parts, nil
}
