package entities

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is a long-lived opaque credential mapping one capture device
// to a user. Expired tokens are ignored, not deleted.
type DeviceToken struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserId    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_device_tokens_user_id"`
	Token     string    `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:unique_device_tokens_token"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
