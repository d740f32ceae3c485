package dto

import (
	"voice-relay/constant"
	"voice-relay/entities"

	"github.com/google/uuid"
)

// DispatchMessage is the payload queued for the workflow dispatch worker.
type DispatchMessage struct {
	RecordingId uuid.UUID `json:"recordingId"`
	UserId      uuid.UUID `json:"userId"`
}

// RecordingFilter narrows a listing. Nil fields mean "all".
type RecordingFilter struct {
	Sender *constant.Sender
	Played *bool
	Limit  int
	Offset int
}

type ListRecordingsResponse struct {
	Recordings []*entities.Recording `json:"recordings"`
	Total      int64                 `json:"total"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

// UpdateRecordingRequest is the allow-listed patch for a recording. Any
// other field in the request body is dropped before it reaches the store.
type UpdateRecordingRequest struct {
	Status     *constant.RecordingStatus `json:"status"`
	Transcript *string                   `json:"transcript"`
	Played     *bool                     `json:"played"`
}

type MarkPlayedRequest struct {
	Id string `json:"id"`
}

type SelectRepoRequest struct {
	Repo string `json:"repo"`
}

type TriggerWorkflowRequest struct {
	RecordingId string `json:"recording_id"`
}

type CreateDeviceTokenRequest struct {
	Name string `json:"name"`
}

// DeviceTokenView is the listing shape for device tokens. Only a prefix of
// the token value is exposed; the full value is shown once at creation.
type DeviceTokenView struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	TokenPrefix string    `json:"token_prefix"`
	ExpiresAt   string    `json:"expires_at"`
	CreatedAt   string    `json:"created_at"`
}
