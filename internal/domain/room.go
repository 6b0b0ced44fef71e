package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RoomStatus is the lifecycle state of a group-order room.
type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active"
	RoomStatusClosed RoomStatus = "closed"
)

// MenuItem is one extracted dish. Items are attached to a room at creation
// time and never mutated afterwards.
type MenuItem struct {
	ID             string  `json:"id"`
	OriginalName   string  `json:"originalName"`
	TranslatedName string  `json:"translatedName"`
	EnglishName    string  `json:"englishName"`
	Description    string  `json:"description,omitempty"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
}

// MenuItems is stored as a single JSON column: the item list is immutable
// after room creation, so there is nothing to gain from a child table.
type MenuItems []MenuItem

func (m MenuItems) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *MenuItems) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*m = nil
		return nil
	default:
		return fmt.Errorf("domain: cannot scan %T into MenuItems", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(data, m)
}

// Room is a shared group-order session. Immutable except for Status; deleted
// together with its participants when the host ends the session.
type Room struct {
	Code        string     `gorm:"primaryKey;size:16" json:"code"`
	Status      RoomStatus `gorm:"size:16;not null" json:"status"`
	HostID      string     `gorm:"index;size:64;not null" json:"hostId"`
	HostKeyHash string     `gorm:"size:128;not null" json:"-"`
	Items       MenuItems  `gorm:"type:json" json:"items"`
	Currency    string     `gorm:"size:8" json:"currency"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"-"`
}

// IsActive reports whether the room still accepts joins and cart updates.
func (r *Room) IsActive() bool {
	return r != nil && r.Status == RoomStatusActive
}
