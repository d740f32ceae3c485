package handler

import (
	"context"
	"encoding/json"
	"errors"
	"voice-relay/dto"
	"voice-relay/service"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type WorkerDependencies struct {
	DispatchService service.DispatchService
}

// DispatchHandler consumes one queued dispatch request. Non-retryable
// failures are marked permanent so the consumer dead-letters them instead
// of retrying.
func DispatchHandler(ctx context.Context, msg amqp.Delivery, deps WorkerDependencies) error {
	var message dto.DispatchMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal dispatch message")
		return backoff.Permanent(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("recording_id", message.RecordingId.String()).
		Str("user_id", message.UserId.String()).
		Msg("received dispatch message")

	if err := deps.DispatchService.Process(ctx, message); err != nil {
		if errors.Is(err, service.ErrNonRetryable) {
			return backoff.Permanent(err)
		}
		return err
	}

	return nil
}
