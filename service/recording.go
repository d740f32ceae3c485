package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"voice-relay/constant"
	"voice-relay/dto"
	"voice-relay/entities"
	"voice-relay/pkg/rabbitmq"
	"voice-relay/pkg/storage"
	"voice-relay/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type UploadInput struct {
	Data        []byte
	Filename    string
	ContentType string
	Transcript  *string
}

type RecordingService interface {
	Upload(ctx context.Context, userId uuid.UUID, in UploadInput) (*entities.Recording, error)
	UploadResponse(ctx context.Context, userId uuid.UUID, in UploadInput) (*entities.Recording, error)
	List(ctx context.Context, userId uuid.UUID, filter dto.RecordingFilter) (*dto.ListRecordingsResponse, error)
	Get(ctx context.Context, userId, id uuid.UUID) (*entities.Recording, error)
	Update(ctx context.Context, userId, id uuid.UUID, patch dto.UpdateRecordingRequest) (*entities.Recording, error)
	MarkPlayed(ctx context.Context, userId, id uuid.UUID) (*entities.Recording, error)
	Download(ctx context.Context, id uuid.UUID) (*entities.Recording, io.ReadCloser, int64, error)
}

type recordingService struct {
	repo      repository.Repository
	store     storage.Store
	publisher rabbitmq.Publisher
	now       func() time.Time
}

func NewRecordingService(repo repository.Repository, store storage.Store, publisher rabbitmq.Publisher) RecordingService {
	return &recordingService{
		repo:      repo,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Upload stores a device-submitted clip and enqueues a workflow dispatch.
// Dispatch enqueue failures are logged, never surfaced: the upload itself
// already succeeded.
func (s *recordingService) Upload(ctx context.Context, userId uuid.UUID, in UploadInput) (*entities.Recording, error) {
	ts := s.now().UnixMilli()
	filename := in.Filename
	if filename == "" {
		filename = fmt.Sprintf("recording_%d.mp3", ts)
	}
	filePath := fmt.Sprintf("%s/%s/%d_%s", constant.SenderUser, userId, ts, filename)

	rec, err := s.persist(ctx, userId, in, filePath, constant.SenderUser, nil)
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, dto.DispatchMessage{RecordingId: rec.ID, UserId: userId}); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("recording_id", rec.ID.String()).Msg("failed to enqueue workflow dispatch")
	}

	return rec, nil
}

// UploadResponse stores an AI-generated reply. No dispatch side effect.
func (s *recordingService) UploadResponse(ctx context.Context, userId uuid.UUID, in UploadInput) (*entities.Recording, error) {
	ts := s.now().UnixMilli()
	ext := "mp3"
	if strings.Contains(in.ContentType, "webm") {
		ext = "webm"
	}
	filePath := fmt.Sprintf("%s/%s/%d_response.%s", constant.SenderAI, userId, ts, ext)

	return s.persist(ctx, userId, in, filePath, constant.SenderAI, in.Transcript)
}

// persist writes the object first, then the metadata row. The two are not
// transactionally linked; if the insert fails the object is removed best
// effort, so at worst an orphaned object remains.
func (s *recordingService) persist(ctx context.Context, userId uuid.UUID, in UploadInput, filePath string, sender constant.Sender, transcript *string) (*entities.Recording, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyFile
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	err := s.store.Put(ctx, filePath, bytes.NewReader(in.Data), int64(len(in.Data)), contentType)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file_path", filePath).Msg("failed to upload object")
		return nil, err
	}

	rec := &entities.Recording{
		ID:         uuid.New(),
		UserId:     userId,
		FilePath:   filePath,
		Sender:     sender,
		Status:     constant.RecordingStatusPending,
		Transcript: transcript,
		Played:     false,
	}
	if err := s.repo.CreateRecording(ctx, rec); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file_path", filePath).Msg("failed to create recording row")
		if removeErr := s.store.Remove(ctx, filePath); removeErr != nil {
			zerolog.Ctx(ctx).Error().Err(removeErr).Str("file_path", filePath).Msg("failed to clean up uploaded object")
		}
		return nil, err
	}

	return rec, nil
}

func (s *recordingService) List(ctx context.Context, userId uuid.UUID, filter dto.RecordingFilter) (*dto.ListRecordingsResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	recordings, total, err := s.repo.ListRecordings(ctx, userId, filter)
	if err != nil {
		return nil, err
	}
	if recordings == nil {
		recordings = []*entities.Recording{}
	}
	return &dto.ListRecordingsResponse{
		Recordings: recordings,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func (s *recordingService) Get(ctx context.Context, userId, id uuid.UUID) (*entities.Recording, error) {
	rec, err := s.repo.FindRecordingByIdAndUser(ctx, id, userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *recordingService) Update(ctx context.Context, userId, id uuid.UUID, patch dto.UpdateRecordingRequest) (*entities.Recording, error) {
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Transcript != nil {
		updates["transcript"] = *patch.Transcript
	}
	if patch.Played != nil {
		updates["played"] = *patch.Played
	}
	if len(updates) == 0 {
		return nil, ErrEmptyPatch
	}

	rec, err := s.repo.UpdateRecording(ctx, id, userId, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *recordingService) MarkPlayed(ctx context.Context, userId, id uuid.UUID) (*entities.Recording, error) {
	rec, err := s.repo.UpdateRecording(ctx, id, userId, map[string]interface{}{"played": true})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Download loads a recording by id alone and streams its object. The caller
// authenticates with the service API key, not a device token, so no
// ownership check applies here.
func (s *recordingService) Download(ctx context.Context, id uuid.UUID) (*entities.Recording, io.ReadCloser, int64, error) {
	rec, err := s.repo.FindRecordingById(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, 0, ErrNotFound
		}
		return nil, nil, 0, err
	}

	rc, size, err := s.store.Get(ctx, rec.FilePath)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file_path", rec.FilePath).Msg("failed to fetch object")
		return nil, nil, 0, err
	}
	return rec, rc, size, nil
}
