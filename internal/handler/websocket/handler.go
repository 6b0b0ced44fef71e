package websocket

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wally0302/menu/internal/hub"
	"github.com/wally0302/menu/internal/middleware"
	"github.com/wally0302/menu/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler upgrades /ws/room/:code requests and hands the
// connection to the hub for live room event delivery.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
}

func NewWebSocketHandler(h *hub.Hub, roomService *service.RoomService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// TODO: restrict origins once the app's public domains are fixed
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		roomService: roomService,
	}
}

// HandleConnection handles GET /ws/room/:code. The room must exist and
// the caller must carry a valid device token (header or ?token=).
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Device not authenticated"})
		return
	}
	logCtx := logrus.WithField("device_id", deviceID)

	code := strings.ToUpper(c.Param("code"))
	if len(code) != 6 {
		logCtx.Warnf("WS Handler: invalid room code format: %s", code)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room code format"})
		return
	}
	logCtx = logCtx.WithField("room_code", code)

	// Validate the room before spending an upgrade on it. A closed room
	// is still accepted so the client can receive the terminal event.
	_, err := h.roomService.Find(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			logCtx.Warn("WS Handler: room not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: error checking room existence")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate room"})
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: connection upgraded")

	client := hub.NewClient(h.hub, conn, code, deviceID)

	registerMsg := hub.HubMessage{
		Type:     "register",
		RoomCode: code,
		Client:   client,
	}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: hub queue full, dropping connection")
		conn.Close()
		return
	}

	client.Run()
}
