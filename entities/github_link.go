package entities

import (
	"time"

	"github.com/google/uuid"
)

// GithubLink holds one user's OAuth access token and chosen repository.
// At most one row per user; the OAuth callback upserts it.
type GithubLink struct {
	UserId      uuid.UUID `json:"user_id" gorm:"type:uuid;primary_key"`
	AccessToken string    `json:"-" gorm:"type:text;not null"`
	TokenType   string    `json:"token_type" gorm:"type:varchar(40)"`
	Scope       string    `json:"scope" gorm:"type:varchar(255)"`
	GithubRepo  *string   `json:"github_repo" gorm:"type:varchar(255)"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (GithubLink) TableName() string {
	return "github_tokens"
}
