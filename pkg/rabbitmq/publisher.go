package rabbitmq

import (
	"context"
	"encoding/json"
	"voice-relay/config"
	"voice-relay/dto"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher enqueues workflow dispatch requests. Deliveries are persistent,
// so a dispatch survives a broker restart once accepted.
type Publisher interface {
	Publish(ctx context.Context, message dto.DispatchMessage) error
}

type publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) Publisher {
	return &publisher{conn: conn, cfg: cfg}
}

func (p *publisher) Publish(ctx context.Context, message dto.DispatchMessage) error {
	if p.conn == nil || p.conn.IsClosed() {
		return amqp.ErrClosed
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(DispatchExchange, p.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		DispatchExchange,
		DispatchRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
