package tasks

import (
	"encoding/json"
	"time"
)

// Task type names routed through asynq.
const (
	TypeRoomCleanup = "room:cleanup"
)

// RoomCleanupPayload carries the retention window for a cleanup sweep.
// Rooms untouched for longer than MaxAge are closed and removed.
type RoomCleanupPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewRoomCleanupTask serializes the payload for a periodic cleanup task.
func NewRoomCleanupTask(maxAge time.Duration) ([]byte, error) {
	payload := RoomCleanupPayload{MaxAge: maxAge}
	return json.Marshal(payload)
}
