package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/service"
	"github.com/wally0302/menu/internal/tasks"
)

const defaultRoomMaxAge = 24 * time.Hour

// RoomCleanupHandler closes and removes group order rooms whose last
// activity is older than the retention window. Closing a room publishes
// the terminal event so connected devices see it immediately.
type RoomCleanupHandler struct {
	roomService *service.RoomService
}

func NewRoomCleanupHandler(roomService *service.RoomService) *RoomCleanupHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomCleanupHandler")
	}
	return &RoomCleanupHandler{roomService: roomService}
}

// ProcessTask implements asynq.Handler.
func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.RoomCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Cleanup: failed to unmarshal payload")
		return fmt.Errorf("unmarshal cleanup payload: %w: %w", err, asynq.SkipRetry)
	}
	maxAge := payload.MaxAge
	if maxAge <= 0 {
		maxAge = defaultRoomMaxAge
	}

	cutoff := time.Now().Add(-maxAge)
	codes, err := h.roomService.StaleRooms(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Cleanup: failed to list stale rooms")
		return fmt.Errorf("list stale rooms: %w", err)
	}
	if len(codes) == 0 {
		logCtx.Debug("Cleanup: no stale rooms")
		return nil
	}
	logCtx.Infof("Cleanup: closing %d stale rooms", len(codes))

	var failed int
	for _, code := range codes {
		closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := h.roomService.Close(closeCtx, code)
		cancel()
		if err != nil {
			failed++
			logCtx.WithError(err).WithField("room_code", code).Warn("Cleanup: failed to close room")
		}
	}
	if failed > 0 {
		return fmt.Errorf("cleanup closed %d/%d rooms", len(codes)-failed, len(codes))
	}
	return nil
}
