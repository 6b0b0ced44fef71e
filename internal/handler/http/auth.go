package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/middleware"
	"github.com/wally0302/menu/internal/session"
)

// AuthHandler issues anonymous device identities. There are no accounts:
// a device id plus a bearer token is all the identity a diner needs.
type AuthHandler struct {
	sessions  *session.Manager
	jwtSecret string
	expiry    time.Duration
}

func NewAuthHandler(sessions *session.Manager, jwtSecret string, expiry time.Duration) *AuthHandler {
	if sessions == nil {
		panic("session.Manager cannot be nil for AuthHandler")
	}
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for AuthHandler")
	}
	return &AuthHandler{sessions: sessions, jwtSecret: jwtSecret, expiry: expiry}
}

type anonymousResponse struct {
	DeviceID string `json:"device_id"`
	Token    string `json:"token"`
	Name     string `json:"name,omitempty"`
}

// Anonymous creates or renews an anonymous device identity. A returning
// device keeps its id (and cart) only by presenting its still-valid token
// in the Authorization header. Device ids are never taken from the request
// body: participant snapshots expose ids to the whole room, so honoring a
// client-claimed id would let any member mint a token for another.
func (h *AuthHandler) Anonymous(c *gin.Context) {
	deviceID := ""
	if tokenStr, ok := bearerToken(c); ok {
		id, err := middleware.DeviceFromToken(tokenStr, h.jwtSecret)
		if err != nil {
			logrus.WithError(err).Warn("Anonymous renewal with invalid token, issuing fresh identity")
		} else {
			deviceID = id
		}
	}
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	token, err := middleware.IssueDeviceToken(deviceID, h.jwtSecret, h.expiry)
	if err != nil {
		logrus.WithError(err).Error("Failed to issue device token")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	// Restores the persisted display name so a returning device can skip
	// the name-entry step.
	view := h.sessions.Session(c.Request.Context(), deviceID).Snapshot()

	SuccessResponse(c, http.StatusOK, anonymousResponse{
		DeviceID: deviceID,
		Token:    token,
		Name:     view.Name,
	})
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
