package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
	"voice-relay/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const ctxUserIdKey = "userId"

// DeviceAuth resolves the x-device-token header against the token table.
// Every device-facing route goes through this single guard.
func DeviceAuth(repo repository.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("x-device-token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing x-device-token header"})
			return
		}

		deviceToken, err := repo.FindDeviceTokenByToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid device token"})
			return
		}
		if !time.Now().Before(deviceToken.ExpiresAt) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Device token expired"})
			return
		}

		c.Set(ctxUserIdKey, deviceToken.UserId)
		c.Next()
	}
}

// SessionAuth validates a Bearer JWT issued by the identity provider. The
// sub claim is the user id.
func SessionAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		userId, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ctxUserIdKey, userId)
		c.Next()
	}
}

// APIKeyAuth guards service-to-service routes with a static shared key.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("x-api-key")
		if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// UserId returns the authenticated user set by one of the auth middlewares.
func UserId(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ctxUserIdKey)
	userId, _ := v.(uuid.UUID)
	return userId
}
