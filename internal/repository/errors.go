package repository

import "errors"

// Shared repository errors. Infrastructure implementations map their
// driver-level failures onto these so that services can branch with
// errors.Is without importing gorm or redis.
var (
	ErrNotFound       = errors.New("repository: record not found")
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

var (
	ErrRoomNotFound        = ErrNotFound
	ErrParticipantNotFound = ErrNotFound
)
