package gormpersistence_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gormpersistence "github.com/wally0302/menu/internal/infra/persistence/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

// Participant rows reference their room by code, so the participant DELETE
// must run before the room DELETE inside one transaction. Expectations are
// ordered, so a swapped statement order fails the test.
func TestGormRoomRepository_DeleteWithParticipants_DeletesParticipantsFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := gormpersistence.NewGormRoomRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `participants` WHERE room_code = ?")).
		WithArgs("ABCDEF").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `rooms` WHERE code = ?")).
		WithArgs("ABCDEF").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteWithParticipants(context.Background(), "ABCDEF"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormRoomRepository_DeleteWithParticipants_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := gormpersistence.NewGormRoomRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `participants` WHERE room_code = ?")).
		WithArgs("ABCDEF").
		WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	err := repo.DeleteWithParticipants(context.Background(), "ABCDEF")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "the room delete must not run after a participant delete failure")
}
