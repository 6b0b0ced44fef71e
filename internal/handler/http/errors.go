package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/menu"
	"github.com/wally0302/menu/internal/service"
	"github.com/wally0302/menu/internal/session"
	"github.com/wally0302/menu/internal/vision"
)

// HandleServiceError maps business errors onto HTTP statuses. Unrecognized
// errors are logged and collapsed into an opaque 500.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRoomClosed):
		ErrorResponse(c, http.StatusGone, err.Error())
	case errors.Is(err, service.ErrNotRoomHost),
		errors.Is(err, service.ErrInvalidHostKey),
		errors.Is(err, session.ErrNotHost),
		errors.Is(err, service.ErrNotParticipant):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmptyMenu),
		errors.Is(err, menu.ErrNoImages),
		errors.Is(err, menu.ErrImageTooLarge):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotInitialized),
		errors.Is(err, session.ErrFeedUnavailable),
		errors.Is(err, vision.ErrNotConfigured):
		// Backend unavailable. Missing configuration blocks the feature
		// entirely; a feed outage is transient and worth a retry. Either
		// way the client falls back to local-only mode.
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	case menu.IsTotalFailure(err):
		ErrorResponse(c, http.StatusUnprocessableEntity, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
