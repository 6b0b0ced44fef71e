package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/wally0302/menu/internal/domain"
	"github.com/wally0302/menu/internal/repository"
)

// GormRoomRepository is the GORM implementation of RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, "code = ?", code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room '%s': %w", room.Code, err)
	}
	return nil
}

func (r *GormRoomRepository) IsCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// DeleteWithParticipants removes the participants first so no transaction
// snapshot can contain a participant row without its room.
func (r *GormRoomRepository) DeleteWithParticipants(ctx context.Context, code string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_code = ?", code).Delete(&domain.Participant{}).Error; err != nil {
			return err
		}
		return tx.Where("code = ?", code).Delete(&domain.Room{}).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: delete room '%s' with participants: %w", code, err)
	}
	return nil
}

func (r *GormRoomRepository) FindStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("status = ? AND created_at < ?", domain.RoomStatusActive, cutoff).
		Pluck("code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find stale rooms: %w", err)
	}
	return codes, nil
}
