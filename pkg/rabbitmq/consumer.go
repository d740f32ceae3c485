package rabbitmq

import (
	"context"
	"sync"
	"time"
	"voice-relay/config"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Dispatch queue topology. The durable queue dead-letters to a DLQ after a
// message exhausts its retries, so no dispatch request is silently dropped.
const (
	DispatchExchange      = "dispatch_exchange"
	DispatchQueue         = "workflow_dispatch_queue"
	DispatchRoutingKey    = "workflow.dispatch.request"
	dispatchDLX           = "dispatch_exchange_dlx"
	dispatchDLQ           = "workflow_dispatch_queue_dlq"
	dispatchDLQRoutingKey = "dlq.workflow.dispatch.request"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
	numWorkers int
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(DispatchExchange, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", DispatchExchange).Msg("failed to declare exchange")
		return err
	}

	err = ch.ExchangeDeclare(dispatchDLX, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", dispatchDLX).Msg("failed to declare dlx")
		return err
	}

	dlq, err := ch.QueueDeclare(dispatchDLQ, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", dispatchDLQ).Msg("failed to declare dlq")
		return err
	}

	err = ch.QueueBind(dlq.Name, dispatchDLQRoutingKey, dispatchDLX, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Msg("failed to bind dlq")
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dispatchDLX,
		"x-dead-letter-routing-key": dispatchDLQRoutingKey,
	}
	q, err := ch.QueueDeclare(DispatchQueue, true, false, false, false, args)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", DispatchQueue).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, DispatchRoutingKey, DispatchExchange, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", DispatchQueue).Msg("failed to bind queue")
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", DispatchQueue).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(DispatchQueue, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", DispatchQueue).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", DispatchQueue).
		Str("exchange", DispatchExchange).
		Str("routing_key", DispatchRoutingKey).
		Int("workers", c.numWorkers).
		Msg("dispatch consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				operation := func() (string, error) {
					err := c.handler(ctx, msg, dependencies)
					if err != nil {
						return "", err
					}
					return "", nil
				}

				bo := backoff.NewExponentialBackOff()
				bo.MaxInterval = 10 * time.Second

				_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(5))
				if err != nil {
					zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Msg("failed to handle message after all retries")
					if nackErr := msg.Nack(false, false); nackErr != nil {
						zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message to send to DLQ")
					}
				} else {
					if ackErr := msg.Ack(false); ackErr != nil {
						zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
