package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"voice-relay/constant"
	"voice-relay/dto"
	"voice-relay/entities"
	"voice-relay/pkg/github"
	"voice-relay/pkg/rabbitmq"
	"voice-relay/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type GithubService interface {
	AuthorizeURL(userId uuid.UUID, origin string) (string, error)
	HandleCallback(ctx context.Context, userId uuid.UUID, code string) error
	ListRepos(ctx context.Context, userId uuid.UUID) ([]github.Repo, error)
	SelectRepo(ctx context.Context, userId uuid.UUID, repo string) error
	Unlink(ctx context.Context, userId uuid.UUID) error
	TriggerWorkflow(ctx context.Context, userId, recordingId uuid.UUID) error
}

var ErrNotConfigured = errors.New("github oauth not configured")

type githubService struct {
	repo      repository.Repository
	gh        *github.Client
	publisher rabbitmq.Publisher
}

func NewGithubService(repo repository.Repository, gh *github.Client, publisher rabbitmq.Publisher) GithubService {
	return &githubService{repo: repo, gh: gh, publisher: publisher}
}

// AuthorizeURL builds the provider redirect. The anti-forgery state is the
// user id; the callback rejects any response whose state differs.
func (s *githubService) AuthorizeURL(userId uuid.UUID, origin string) (string, error) {
	if !s.gh.Configured() {
		return "", ErrNotConfigured
	}
	redirectURI := origin + "/api/github/callback"
	return s.gh.AuthorizeURL(redirectURI, "repo", userId.String()), nil
}

func (s *githubService) HandleCallback(ctx context.Context, userId uuid.UUID, code string) error {
	if !s.gh.Configured() {
		return ErrNotConfigured
	}

	token, err := s.gh.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	link := &entities.GithubLink{
		UserId:      userId,
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Scope:       token.Scope,
		UpdatedAt:   time.Now(),
	}
	if err := s.repo.UpsertGithubLink(ctx, link); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to store github link")
		return err
	}
	return nil
}

func (s *githubService) ListRepos(ctx context.Context, userId uuid.UUID) ([]github.Repo, error) {
	link, err := s.repo.FindGithubLinkByUser(ctx, userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotLinked
		}
		return nil, err
	}
	return s.gh.ListRepos(ctx, link.AccessToken)
}

// SelectRepo provisions a device token as a repository secret, then persists
// the repo choice. Ordering matters: the choice is only saved once the
// secret PUT succeeded. A token inserted before a failed PUT stays behind.
func (s *githubService) SelectRepo(ctx context.Context, userId uuid.UUID, repoName string) error {
	link, err := s.repo.FindGithubLinkByUser(ctx, userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotLinked
		}
		return err
	}

	deviceToken, err := newDeviceToken(userId, fmt.Sprintf("workflow %s", repoName))
	if err != nil {
		return err
	}
	if err := s.repo.CreateDeviceToken(ctx, deviceToken); err != nil {
		return err
	}

	key, err := s.gh.RepoPublicKey(ctx, link.AccessToken, repoName)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("repo", repoName).Msg("failed to fetch repo public key")
		return err
	}
	if err := s.gh.PutRepoSecret(ctx, link.AccessToken, repoName, constant.WorkflowSecretName, deviceToken.Token, key); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("repo", repoName).Msg("failed to provision repo secret")
		return err
	}

	return s.repo.UpdateGithubRepo(ctx, userId, repoName)
}

// Unlink removes the stored link. Idempotent; the upstream token is not
// revoked at the provider.
func (s *githubService) Unlink(ctx context.Context, userId uuid.UUID) error {
	return s.repo.DeleteGithubLink(ctx, userId)
}

// TriggerWorkflow verifies ownership and enqueues a dispatch message. The
// worker resolves the user's linked repo and token, so manual triggers and
// post-upload triggers go through the same policy.
func (s *githubService) TriggerWorkflow(ctx context.Context, userId, recordingId uuid.UUID) error {
	rec, err := s.repo.FindRecordingById(ctx, recordingId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if rec.UserId != userId {
		return ErrForbidden
	}

	return s.publisher.Publish(ctx, dto.DispatchMessage{RecordingId: rec.ID, UserId: rec.UserId})
}
