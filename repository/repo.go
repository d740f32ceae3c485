package repository

import (
	"context"
	"database/sql"
	"voice-relay/dto"
	"voice-relay/entities"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Repository interface {
	GetDB() *gorm.DB

	FindDeviceTokenByToken(ctx context.Context, token string) (*entities.DeviceToken, error)
	CreateDeviceToken(ctx context.Context, t *entities.DeviceToken) error
	ListDeviceTokensByUser(ctx context.Context, userId uuid.UUID) ([]*entities.DeviceToken, error)
	DeleteDeviceToken(ctx context.Context, userId, id uuid.UUID) error

	CreateRecording(ctx context.Context, r *entities.Recording) error
	FindRecordingById(ctx context.Context, id uuid.UUID) (*entities.Recording, error)
	FindRecordingByIdAndUser(ctx context.Context, id, userId uuid.UUID) (*entities.Recording, error)
	ListRecordings(ctx context.Context, userId uuid.UUID, filter dto.RecordingFilter) ([]*entities.Recording, int64, error)
	UpdateRecording(ctx context.Context, id, userId uuid.UUID, updates map[string]interface{}) (*entities.Recording, error)

	UpsertGithubLink(ctx context.Context, link *entities.GithubLink) error
	FindGithubLinkByUser(ctx context.Context, userId uuid.UUID) (*entities.GithubLink, error)
	UpdateGithubRepo(ctx context.Context, userId uuid.UUID, repo string) error
	DeleteGithubLink(ctx context.Context, userId uuid.UUID) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) Repository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

// NewGormRepo wraps an already-open gorm handle. Used by tests.
func NewGormRepo(db *gorm.DB) Repository {
	return &repo{db: db}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) FindDeviceTokenByToken(ctx context.Context, token string) (*entities.DeviceToken, error) {
	t := &entities.DeviceToken{}
	err := r.GetDB().WithContext(ctx).First(t, "token = ?", token).Error
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repo) CreateDeviceToken(ctx context.Context, t *entities.DeviceToken) error {
	return r.GetDB().WithContext(ctx).Create(t).Error
}

func (r *repo) ListDeviceTokensByUser(ctx context.Context, userId uuid.UUID) ([]*entities.DeviceToken, error) {
	var tokens []*entities.DeviceToken
	err := r.GetDB().WithContext(ctx).Where("user_id = ?", userId).Order("created_at DESC").Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *repo) DeleteDeviceToken(ctx context.Context, userId, id uuid.UUID) error {
	return r.GetDB().WithContext(ctx).Where("user_id = ? AND id = ?", userId, id).Delete(&entities.DeviceToken{}).Error
}

func (r *repo) CreateRecording(ctx context.Context, rec *entities.Recording) error {
	return r.GetDB().WithContext(ctx).Create(rec).Error
}

func (r *repo) FindRecordingById(ctx context.Context, id uuid.UUID) (*entities.Recording, error) {
	rec := &entities.Recording{}
	err := r.GetDB().WithContext(ctx).First(rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *repo) FindRecordingByIdAndUser(ctx context.Context, id, userId uuid.UUID) (*entities.Recording, error) {
	rec := &entities.Recording{}
	err := r.GetDB().WithContext(ctx).First(rec, "id = ? AND user_id = ?", id, userId).Error
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecordings returns a page of the user's recordings ordered newest
// first, plus the total count matching the filters regardless of paging.
func (r *repo) ListRecordings(ctx context.Context, userId uuid.UUID, filter dto.RecordingFilter) ([]*entities.Recording, int64, error) {
	query := r.GetDB().WithContext(ctx).Model(&entities.Recording{}).Where("user_id = ?", userId)
	if filter.Sender != nil {
		query = query.Where("sender = ?", *filter.Sender)
	}
	if filter.Played != nil {
		query = query.Where("played = ?", *filter.Played)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recordings []*entities.Recording
	err := query.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&recordings).Error
	if err != nil {
		return nil, 0, err
	}
	return recordings, total, nil
}

func (r *repo) UpdateRecording(ctx context.Context, id, userId uuid.UUID, updates map[string]interface{}) (*entities.Recording, error) {
	result := r.GetDB().WithContext(ctx).Model(&entities.Recording{}).
		Where("id = ? AND user_id = ?", id, userId).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindRecordingByIdAndUser(ctx, id, userId)
}

func (r *repo) UpsertGithubLink(ctx context.Context, link *entities.GithubLink) error {
	return r.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(link).Error
}

func (r *repo) FindGithubLinkByUser(ctx context.Context, userId uuid.UUID) (*entities.GithubLink, error) {
	link := &entities.GithubLink{}
	err := r.GetDB().WithContext(ctx).First(link, "user_id = ?", userId).Error
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (r *repo) UpdateGithubRepo(ctx context.Context, userId uuid.UUID, repoName string) error {
	result := r.GetDB().WithContext(ctx).Model(&entities.GithubLink{}).
		Where("user_id = ?", userId).
		Update("github_repo", repoName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteGithubLink is idempotent: deleting a missing link is not an error.
func (r *repo) DeleteGithubLink(ctx context.Context, userId uuid.UUID) error {
	return r.GetDB().WithContext(ctx).Where("user_id = ?", userId).Delete(&entities.GithubLink{}).Error
}
