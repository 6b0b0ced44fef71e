package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/wally0302/menu/internal/middleware"
	"github.com/wally0302/menu/internal/session"
)

// RoomHandler exposes the group-order lifecycle over HTTP. All state flows
// through the caller's session; live updates arrive over the WebSocket
// feed, not through these endpoints.
type RoomHandler struct {
	sessions *session.Manager
	baseURL  string
}

func NewRoomHandler(sessions *session.Manager, baseURL string) *RoomHandler {
	if sessions == nil {
		panic("session.Manager cannot be nil for RoomHandler")
	}
	return &RoomHandler{sessions: sessions, baseURL: strings.TrimRight(baseURL, "/")}
}

// joinURL is the shareable link; the room code rides in a single query
// parameter so the client can route straight into the join flow.
func (h *RoomHandler) joinURL(code string) string {
	return fmt.Sprintf("%s/?room=%s", h.baseURL, code)
}

type createRoomResponse struct {
	RoomCode string `json:"room_code"`
	HostKey  string `json:"host_key"`
	JoinURL  string `json:"join_url"`
}

// Create shares the caller's scanned menu as a new group order.
func (h *RoomHandler) Create(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	sess := h.sessions.Session(c.Request.Context(), deviceID)
	room, hostKey, err := sess.CreateGroupOrder(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"device_id": deviceID, "room_code": room.Code}).
		Info("Group order created")
	SuccessResponse(c, http.StatusOK, createRoomResponse{
		RoomCode: room.Code,
		HostKey:  hostKey,
		JoinURL:  h.joinURL(room.Code),
	})
}

type joinRoomRequest struct {
	Code string `json:"code" binding:"required,len=6"`
	Name string `json:"name" binding:"required,max=64"`
}

// Join enters an existing group order under a display name.
func (h *RoomHandler) Join(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: code (6 chars) and name are required")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	sess := h.sessions.Session(c.Request.Context(), deviceID)
	if err := sess.JoinGroupOrder(c.Request.Context(), code, req.Name); err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"device_id": deviceID, "room_code": code}).
		Info("Joined group order")
	SuccessResponse(c, http.StatusOK, sess.Snapshot())
}

// Leave exits group mode locally; nothing is deleted server-side and the
// local cart reappears unchanged.
func (h *RoomHandler) Leave(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	sess := h.sessions.Session(c.Request.Context(), deviceID)
	sess.LeaveGroup()
	SuccessResponse(c, http.StatusOK, sess.Snapshot())
}

// Delete ends the group order for everyone. Host only, proven by the host
// key handed out at creation.
func (h *RoomHandler) Delete(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	hostKey := c.GetHeader("X-Host-Key")
	if hostKey == "" {
		ErrorResponse(c, http.StatusBadRequest, "X-Host-Key header required")
		return
	}

	sess := h.sessions.Session(c.Request.Context(), deviceID)
	if err := sess.DeleteGroupOrder(c.Request.Context(), hostKey); err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithField("device_id", deviceID).Info("Group order deleted")
	SuccessResponse(c, http.StatusOK, sess.Snapshot())
}

// QR renders the shareable join link as a PNG QR code.
func (h *RoomHandler) QR(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if len(code) != 6 {
		ErrorResponse(c, http.StatusBadRequest, "Invalid room code")
		return
	}

	png, err := qrcode.Encode(h.joinURL(code), qrcode.Medium, 256)
	if err != nil {
		logrus.WithError(err).WithField("room_code", code).Error("Failed to encode QR code")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
