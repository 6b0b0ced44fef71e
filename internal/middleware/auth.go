package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// ContextDeviceID is the gin context key the Auth middleware sets.
const ContextDeviceID = "device_id"

// ErrMissingAuthHeader is returned when no Authorization header is present.
var ErrMissingAuthHeader = errors.New("authorization header missing")

// IssueDeviceToken mints a JWT carrying an anonymous device identity. The
// identity is stable per device as long as the client replays the token.
func IssueDeviceToken(deviceID, secret string, expiry time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"device_id": deviceID,
		"exp":       time.Now().Add(expiry).Unix(),
		"iat":       time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign device token: %w", err)
	}
	return signed, nil
}

// Auth validates the bearer token and exposes the device id to handlers.
// WebSocket upgrades cannot set headers from the browser, so a token query
// parameter is accepted as a fallback.
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			logrus.Warn("Auth middleware: missing or malformed Authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
			c.Abort()
			return
		}

		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		deviceID, ok := claims["device_id"].(string)
		if !ok || deviceID == "" {
			logrus.Error("Auth middleware: 'device_id' claim missing in token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set(ContextDeviceID, deviceID)
		c.Next()
	}
}

// DeviceFromToken validates a signed token and returns the device id it
// carries. It is the proof-of-possession check for identity renewal: only
// a caller holding a still-valid token may keep its device id.
func DeviceFromToken(tokenStr, secret string) (string, error) {
	claims, err := validateToken(tokenStr, secret)
	if err != nil {
		return "", err
	}
	deviceID, ok := claims["device_id"].(string)
	if !ok || deviceID == "" {
		return "", errors.New("'device_id' claim missing in token")
	}
	return deviceID, nil
}

// DeviceID reads the authenticated device id from the gin context.
func DeviceID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextDeviceID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func extractToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", jwt.ErrTokenMalformed
		}
		return parts[1], nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingAuthHeader
}

func validateToken(tokenStr, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}
