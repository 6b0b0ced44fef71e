package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httphandler "github.com/wally0302/menu/internal/handler/http"
	"github.com/wally0302/menu/internal/middleware"
	"github.com/wally0302/menu/internal/repository/mocks"
	"github.com/wally0302/menu/internal/session"
)

const authTestSecret = "test-secret"

func newAuthTestRouter(deviceState *mocks.DeviceStateRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	sessions := session.NewManager(nil, nil, deviceState)
	handler := httphandler.NewAuthHandler(sessions, authTestSecret, time.Hour)

	r := gin.New()
	r.POST("/api/auth/anonymous", handler.Anonymous)
	return r
}

func TestAuthHandler_Anonymous_NewDevice(t *testing.T) {
	deviceState := new(mocks.DeviceStateRepository)
	deviceState.On("LoadLocalCart", mock.Anything, mock.Anything).Return(nil, nil).Once()
	deviceState.On("LoadDisplayName", mock.Anything, mock.Anything).Return("", nil).Once()
	r := newAuthTestRouter(deviceState)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/anonymous", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DeviceID string `json:"device_id"`
		Token    string `json:"token"`
		Name     string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.DeviceID)
	assert.NotEmpty(t, resp.Token)
	assert.Empty(t, resp.Name)
}

func TestAuthHandler_Anonymous_ValidTokenRenewsIdentity(t *testing.T) {
	deviceState := new(mocks.DeviceStateRepository)
	deviceState.On("LoadLocalCart", mock.Anything, "device-known").Return(nil, nil).Once()
	deviceState.On("LoadDisplayName", mock.Anything, "device-known").Return("Alice", nil).Once()
	r := newAuthTestRouter(deviceState)

	token, err := middleware.IssueDeviceToken("device-known", authTestSecret, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/anonymous", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DeviceID string `json:"device_id"`
		Name     string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "device-known", resp.DeviceID, "a device holding its token keeps its identity across renewals")
	assert.Equal(t, "Alice", resp.Name, "the remembered display name is restored")
}

// A device id claimed in the request body is never honored. Ids circulate
// in participant snapshots, so this would let any room member obtain a
// token for another diner.
func TestAuthHandler_Anonymous_BodyClaimedIDIsIgnored(t *testing.T) {
	deviceState := new(mocks.DeviceStateRepository)
	deviceState.On("LoadLocalCart", mock.Anything, mock.Anything).Return(nil, nil).Once()
	deviceState.On("LoadDisplayName", mock.Anything, mock.Anything).Return("", nil).Once()
	r := newAuthTestRouter(deviceState)

	body := bytes.NewBufferString(`{"device_id":"device-victim"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/anonymous", body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DeviceID string `json:"device_id"`
		Token    string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, "device-victim", resp.DeviceID, "identity renewal requires proof of possession")
	assert.NotEmpty(t, resp.DeviceID)

	id, err := middleware.DeviceFromToken(resp.Token, authTestSecret)
	require.NoError(t, err)
	assert.NotEqual(t, "device-victim", id, "the issued token must not carry the claimed id")
}

func TestAuthHandler_Anonymous_ExpiredTokenGetsFreshIdentity(t *testing.T) {
	deviceState := new(mocks.DeviceStateRepository)
	deviceState.On("LoadLocalCart", mock.Anything, mock.Anything).Return(nil, nil).Once()
	deviceState.On("LoadDisplayName", mock.Anything, mock.Anything).Return("", nil).Once()
	r := newAuthTestRouter(deviceState)

	expired, err := middleware.IssueDeviceToken("device-known", authTestSecret, -time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/anonymous", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		DeviceID string `json:"device_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, "device-known", resp.DeviceID)
	assert.NotEmpty(t, resp.DeviceID)
}
