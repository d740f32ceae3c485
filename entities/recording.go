package entities

import (
	"time"
	"voice-relay/constant"

	"github.com/google/uuid"
)

type Recording struct {
	ID         uuid.UUID                `json:"id" gorm:"type:uuid;primary_key"`
	UserId     uuid.UUID                `json:"user_id" gorm:"type:uuid;not null;index:idx_recordings_user_id"`
	FilePath   string                   `json:"file_path" gorm:"type:varchar(500);not null;uniqueIndex:unique_recordings_file_path"`
	Sender     constant.Sender          `json:"sender" gorm:"type:varchar(10);not null"`
	Status     constant.RecordingStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Transcript *string                  `json:"transcript" gorm:"type:text"`
	Played     bool                     `json:"played" gorm:"not null;default:false"`
	Duration   *float64                 `json:"duration" gorm:"type:numeric"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

func (Recording) TableName() string {
	return "recordings"
}
