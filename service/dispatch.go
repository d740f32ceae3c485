package service

import (
	"context"
	"errors"
	"voice-relay/dto"
	"voice-relay/pkg/github"
	"voice-relay/repository"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DispatchService performs the outbound workflow dispatch for a queued
// message. Errors wrapping ErrNonRetryable go straight to the DLQ; anything
// else is retried by the consumer.
type DispatchService interface {
	Process(ctx context.Context, message dto.DispatchMessage) error
}

type dispatchService struct {
	repo repository.Repository
	gh   *github.Client
}

func NewDispatchService(repo repository.Repository, gh *github.Client) DispatchService {
	return &dispatchService{repo: repo, gh: gh}
}

func (s *dispatchService) Process(ctx context.Context, message dto.DispatchMessage) error {
	logger := zerolog.Ctx(ctx).With().
		Str("recording_id", message.RecordingId.String()).
		Str("user_id", message.UserId.String()).
		Logger()

	link, err := s.repo.FindGithubLinkByUser(ctx, message.UserId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info().Msg("skipping dispatch, user has no github link")
			return errors.Join(ErrNonRetryable, err)
		}
		return err
	}
	if link.GithubRepo == nil || *link.GithubRepo == "" {
		logger.Info().Msg("skipping dispatch, no repository selected")
		return errors.Join(ErrNonRetryable, errors.New("no repository selected"))
	}

	err = s.gh.DispatchWorkflow(ctx, link.AccessToken, *link.GithubRepo, map[string]string{
		"recording_id": message.RecordingId.String(),
	})
	if err != nil {
		logger.Error().Err(err).Str("repo", *link.GithubRepo).Msg("workflow dispatch failed")
		return err
	}

	logger.Info().Str("repo", *link.GithubRepo).Msg("workflow dispatched")
	return nil
}
