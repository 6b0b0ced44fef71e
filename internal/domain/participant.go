package domain

import "time"

// Participant is one device's identity within a room, owning exactly one
// cart. Created on join; the cart is mutated only by its owner and removed
// only as a side effect of room deletion.
type Participant struct {
	DeviceID string    `gorm:"primaryKey;size:64" json:"id"`
	RoomCode string    `gorm:"primaryKey;size:16;index" json:"-"`
	Name     string    `gorm:"size:64;not null" json:"name"`
	Cart     Cart      `gorm:"type:json" json:"cart"`
	IsHost   bool      `gorm:"not null" json:"isHost"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}
