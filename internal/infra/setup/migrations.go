package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wally0302/menu/internal/domain"
)

// MigrateDB creates or updates the schema for all persisted models.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}
	if err := db.AutoMigrate(&domain.Room{}, &domain.Participant{}); err != nil {
		return fmt.Errorf("auto-migrate tables: %w", err)
	}
	logrus.Info("Database migration completed successfully")
	return nil
}
