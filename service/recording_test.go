package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
	"voice-relay/constant"
	"voice-relay/dto"
	"voice-relay/entities"
	"voice-relay/pkg/storage"
	"voice-relay/repository"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubPublisher struct {
	mu       sync.Mutex
	messages []dto.DispatchMessage
	err      error
}

func (p *stubPublisher) Publish(ctx context.Context, message dto.DispatchMessage) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.DeviceToken{}, &entities.Recording{}, &entities.GithubLink{}))
	return repository.NewGormRepo(db)
}

func newRecordingFixture(t *testing.T) (*recordingService, repository.Repository, *storage.Memory, *stubPublisher) {
	t.Helper()
	repo := newTestRepo(t)
	store := storage.NewMemory()
	publisher := &stubPublisher{}
	svc := NewRecordingService(repo, store, publisher).(*recordingService)
	return svc, repo, store, publisher
}

func TestUploadCreatesPendingRecording(t *testing.T) {
	svc, repo, store, publisher := newRecordingFixture(t)
	userId := uuid.New()

	rec, err := svc.Upload(context.Background(), userId, UploadInput{
		Data:        []byte("audio-bytes"),
		Filename:    "clip.mp3",
		ContentType: "audio/mpeg",
	})
	require.NoError(t, err)

	assert.Equal(t, constant.SenderUser, rec.Sender)
	assert.Equal(t, constant.RecordingStatusPending, rec.Status)
	assert.False(t, rec.Played)
	assert.Contains(t, rec.FilePath, "user/"+userId.String()+"/")
	assert.Contains(t, rec.FilePath, "clip.mp3")
	assert.True(t, store.Has(rec.FilePath))

	stored, err := repo.FindRecordingByIdAndUser(context.Background(), rec.ID, userId)
	require.NoError(t, err)
	assert.Equal(t, rec.FilePath, stored.FilePath)

	require.Len(t, publisher.messages, 1)
	assert.Equal(t, rec.ID, publisher.messages[0].RecordingId)
	assert.Equal(t, userId, publisher.messages[0].UserId)
}

func TestUploadEmptyPayload(t *testing.T) {
	svc, _, store, publisher := newRecordingFixture(t)

	_, err := svc.Upload(context.Background(), uuid.New(), UploadInput{Data: nil})
	assert.ErrorIs(t, err, ErrEmptyFile)
	assert.Zero(t, store.Len(), "no object written")
	assert.Empty(t, publisher.messages)
}

func TestUploadPublishFailureDoesNotFailUpload(t *testing.T) {
	svc, repo, _, publisher := newRecordingFixture(t)
	publisher.err = fmt.Errorf("broker down")
	userId := uuid.New()

	rec, err := svc.Upload(context.Background(), userId, UploadInput{Data: []byte("x")})
	require.NoError(t, err)

	_, err = repo.FindRecordingByIdAndUser(context.Background(), rec.ID, userId)
	require.NoError(t, err)
}

func TestUploadRollsBackObjectOnInsertFailure(t *testing.T) {
	svc, repo, store, _ := newRecordingFixture(t)
	userId := uuid.New()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	// Occupy the exact file_path the next upload will derive, so the
	// metadata insert hits the unique constraint after the object write.
	conflictPath := fmt.Sprintf("user/%s/%d_clip.mp3", userId, fixed.UnixMilli())
	require.NoError(t, repo.CreateRecording(context.Background(), &entities.Recording{
		ID:       uuid.New(),
		UserId:   userId,
		FilePath: conflictPath,
		Sender:   constant.SenderUser,
		Status:   constant.RecordingStatusPending,
	}))

	_, err := svc.Upload(context.Background(), userId, UploadInput{
		Data:     []byte("audio"),
		Filename: "clip.mp3",
	})
	require.Error(t, err)
	assert.False(t, store.Has(conflictPath), "object removed after failed insert")
}

func TestUploadResponseStoresTranscript(t *testing.T) {
	svc, _, store, publisher := newRecordingFixture(t)
	userId := uuid.New()
	transcript := "hello there"

	rec, err := svc.UploadResponse(context.Background(), userId, UploadInput{
		Data:        []byte("reply-bytes"),
		ContentType: "audio/webm",
		Transcript:  &transcript,
	})
	require.NoError(t, err)

	assert.Equal(t, constant.SenderAI, rec.Sender)
	require.NotNil(t, rec.Transcript)
	assert.Equal(t, transcript, *rec.Transcript)
	assert.Contains(t, rec.FilePath, "ai/"+userId.String()+"/")
	assert.Contains(t, rec.FilePath, "_response.webm")
	assert.True(t, store.Has(rec.FilePath))

	assert.Empty(t, publisher.messages, "response uploads do not dispatch")
}

func TestListDefaultsAndCap(t *testing.T) {
	svc, _, _, _ := newRecordingFixture(t)
	userId := uuid.New()

	resp, err := svc.List(context.Background(), userId, dto.RecordingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 50, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
	assert.NotNil(t, resp.Recordings)

	resp, err = svc.List(context.Background(), userId, dto.RecordingFilter{Limit: 10000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Limit)
	assert.Equal(t, 0, resp.Offset)
}

func TestGetScopedToOwner(t *testing.T) {
	svc, repo, _, _ := newRecordingFixture(t)
	owner := uuid.New()

	rec := &entities.Recording{
		ID:       uuid.New(),
		UserId:   owner,
		FilePath: "user/" + owner.String() + "/1_clip.mp3",
		Sender:   constant.SenderUser,
		Status:   constant.RecordingStatusPending,
	}
	require.NoError(t, repo.CreateRecording(context.Background(), rec))

	got, err := svc.Get(context.Background(), owner, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = svc.Get(context.Background(), uuid.New(), rec.ID)
	assert.ErrorIs(t, err, ErrNotFound, "foreign rows look nonexistent")
}

func TestUpdateEmptyPatch(t *testing.T) {
	svc, _, _, _ := newRecordingFixture(t)

	_, err := svc.Update(context.Background(), uuid.New(), uuid.New(), dto.UpdateRecordingRequest{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
}

func TestUpdateAndMarkPlayed(t *testing.T) {
	svc, repo, _, _ := newRecordingFixture(t)
	owner := uuid.New()

	rec := &entities.Recording{
		ID:       uuid.New(),
		UserId:   owner,
		FilePath: "user/" + owner.String() + "/2_clip.mp3",
		Sender:   constant.SenderUser,
		Status:   constant.RecordingStatusPending,
	}
	require.NoError(t, repo.CreateRecording(context.Background(), rec))

	status := constant.RecordingStatusDone
	transcript := "done now"
	updated, err := svc.Update(context.Background(), owner, rec.ID, dto.UpdateRecordingRequest{
		Status:     &status,
		Transcript: &transcript,
	})
	require.NoError(t, err)
	assert.Equal(t, constant.RecordingStatusDone, updated.Status)
	require.NotNil(t, updated.Transcript)
	assert.Equal(t, transcript, *updated.Transcript)
	assert.False(t, updated.Played)

	played, err := svc.MarkPlayed(context.Background(), owner, rec.ID)
	require.NoError(t, err)
	assert.True(t, played.Played)

	_, err = svc.MarkPlayed(context.Background(), uuid.New(), rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadStreamsObject(t *testing.T) {
	svc, _, store, _ := newRecordingFixture(t)
	owner := uuid.New()

	rec, err := svc.Upload(context.Background(), owner, UploadInput{Data: []byte("payload")})
	require.NoError(t, err)

	got, rc, size, err := svc.Download(context.Background(), rec.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, rec.ID, got.ID)
	assert.EqualValues(t, len("payload"), size)

	// Missing row is a not-found, missing object an upstream failure.
	_, _, _, err = svc.Download(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Remove(context.Background(), rec.FilePath))
	_, _, _, err = svc.Download(context.Background(), rec.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
