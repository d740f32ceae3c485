package handler

import (
	"net/http"
	"time"
	"voice-relay/dto"
	"voice-relay/entities"
	"voice-relay/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DeviceTokenHandler struct {
	service service.DeviceTokenService
}

func NewDeviceTokenHandler(s service.DeviceTokenService) *DeviceTokenHandler {
	return &DeviceTokenHandler{service: s}
}

// Create mints a device token. The full token value appears in this
// response only; listings show a prefix.
func (h *DeviceTokenHandler) Create(c *gin.Context) {
	var req dto.CreateDeviceTokenRequest
	// Body is optional; an absent or invalid body means a default name.
	_ = c.ShouldBindJSON(&req)

	token, err := h.service.Create(c.Request.Context(), UserId(c), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         token.ID,
		"name":       token.Name,
		"token":      token.Token,
		"expires_at": token.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *DeviceTokenHandler) List(c *gin.Context) {
	tokens, err := h.service.List(c.Request.Context(), UserId(c))
	if err != nil {
		writeError(c, err)
		return
	}

	views := make([]dto.DeviceTokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, deviceTokenView(t))
	}
	c.JSON(http.StatusOK, gin.H{"tokens": views})
}

func (h *DeviceTokenHandler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token id"})
		return
	}

	if err := h.service.Revoke(c.Request.Context(), UserId(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func deviceTokenView(t *entities.DeviceToken) dto.DeviceTokenView {
	prefix := t.Token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return dto.DeviceTokenView{
		Id:          t.ID,
		Name:        t.Name,
		TokenPrefix: prefix,
		ExpiresAt:   t.ExpiresAt.Format(time.RFC3339),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
}
