package http

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/wally0302/menu/internal/menu"
	"github.com/wally0302/menu/internal/middleware"
	"github.com/wally0302/menu/internal/session"
	"github.com/wally0302/menu/internal/vision"
)

// MenuHandler covers scanning and browsing: image extraction, the session
// snapshot, cart deltas and dish explanations.
type MenuHandler struct {
	sessions  *session.Manager
	scanner   *menu.Scanner
	explainer DishExplainer
}

// DishExplainer is the slice of the vision client the explain endpoint
// needs; it never fails, only falls back.
type DishExplainer interface {
	ExplainDish(ctx context.Context, dishName string) string
}

func NewMenuHandler(sessions *session.Manager, scanner *menu.Scanner, explainer DishExplainer) *MenuHandler {
	if sessions == nil {
		panic("session.Manager cannot be nil for MenuHandler")
	}
	if scanner == nil {
		panic("Scanner cannot be nil for MenuHandler")
	}
	if explainer == nil {
		panic("DishExplainer cannot be nil for MenuHandler")
	}
	return &MenuHandler{sessions: sessions, scanner: scanner, explainer: explainer}
}

// Scan accepts one or more photographed menu pages as multipart files under
// the "images" field, extracts dishes and appends them to the session's
// local menu. Pages that fail are dropped with a warning; only a total
// failure aborts.
func (h *MenuHandler) Scan(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Expected multipart form with image files")
		return
	}
	files := form.File["images"]
	country := vision.Country(c.PostForm("country"))

	var images [][]byte
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Failed to read uploaded image")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Failed to read uploaded image")
			return
		}
		images = append(images, data)
	}

	result, err := h.scanner.Scan(c.Request.Context(), images, country)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	sess := h.sessions.Session(c.Request.Context(), deviceID)
	currency := ""
	if len(result.Items) > 0 {
		currency = result.Items[0].Currency
	}
	sess.AddItems(c.Request.Context(), result.Items, currency)

	logrus.WithFields(logrus.Fields{
		"device_id":    deviceID,
		"pages":        len(images),
		"failed_pages": result.FailedPages,
		"items":        len(result.Items),
	}).Info("Menu scan completed")

	SuccessResponse(c, http.StatusOK, gin.H{
		"session": sess.Snapshot(),
		"warning": result.Warning,
	})
}

// Session returns the caller's current view.
func (h *MenuHandler) Session(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	sess := h.sessions.Session(c.Request.Context(), deviceID)
	SuccessResponse(c, http.StatusOK, sess.Snapshot())
}

// Reset drops the scanned menu and local cart, returning to the start
// screen state.
func (h *MenuHandler) Reset(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	sess := h.sessions.Session(c.Request.Context(), deviceID)
	sess.ResetLocal(c.Request.Context())
	SuccessResponse(c, http.StatusOK, sess.Snapshot())
}

type cartUpdateRequest struct {
	ItemID string `json:"item_id" binding:"required"`
	Delta  int    `json:"delta" binding:"required"`
}

// UpdateCart applies a signed quantity delta to the active cart view.
func (h *MenuHandler) UpdateCart(c *gin.Context) {
	deviceID, ok := middleware.DeviceID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req cartUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: item_id and a non-zero delta are required")
		return
	}

	sess := h.sessions.Session(c.Request.Context(), deviceID)
	cart, err := sess.UpdateCart(c.Request.Context(), req.ItemID, req.Delta)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"cart": cart})
}

type explainRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

// Explain returns a short dish explanation. A failed lookup degrades to a
// fallback string, never an error response.
func (h *MenuHandler) Explain(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}
	explanation := h.explainer.ExplainDish(c.Request.Context(), req.Name)
	SuccessResponse(c, http.StatusOK, gin.H{"explanation": explanation})
}
