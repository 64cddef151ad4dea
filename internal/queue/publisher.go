package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrDisabled is returned by a Publisher that has no broker URL.
var ErrDisabled = errors.New("rabbitmq: publishing disabled")

// Publisher publishes domain events to RabbitMQ. It dials per message:
// publish volume is a handful per request at most. Errors are logged and
// returned so callers can ignore them without interrupting the request.
type Publisher struct {
	url string
	log *zap.Logger
}

// NewPublisher returns a publisher for url. An empty url yields a publisher
// whose every call returns ErrDisabled.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log}
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

func (p *Publisher) PublishPaymentInitiated(ctx context.Context, ev PaymentInitiatedEvent) error {
	return p.publish(ctx, PaymentInitiatedQueue, ev)
}

func (p *Publisher) PublishNotificationRequested(ctx context.Context, ev NotificationRequestedEvent) error {
	return p.publish(ctx, NotificationRequestedQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	if !p.Enabled() {
		return ErrDisabled
	}
	log := p.log.With(zap.String("queue", queue))

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Warn("rabbitmq: marshal event failed", zap.Error(err))
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", queue, false, false, pub); err != nil {
		log.Warn("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}
