package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one delivery body. A returned error rejects the
// message without requeueing it.
type Handler func(ctx context.Context, body []byte) error

// Consumer runs queue handlers against one broker, reconnecting with
// backoff until its context is cancelled.
type Consumer struct {
	url string
	log *zap.Logger
	wg  sync.WaitGroup
}

func NewConsumer(url string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, log: log}
}

// Start consumes queue in a background goroutine. Wait blocks until every
// started goroutine has returned after ctx is done.
func (c *Consumer) Start(ctx context.Context, queue string, h Handler) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx, queue, h)
	}()
}

func (c *Consumer) Wait() { c.wg.Wait() }

func (c *Consumer) run(ctx context.Context, queue string, h Handler) {
	log := c.log.With(zap.String("queue", queue))
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn("consumer: failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queue, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn("consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, h Handler, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := h(ctx, d.Body); err != nil {
				log.Warn("consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // no requeue, avoids tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// PaymentAuditLog returns a handler that appends each payment.initiated
// event to <dir>/payments.log as one line.
func PaymentAuditLog(dir string) Handler {
	var mu sync.Mutex
	return func(_ context.Context, body []byte) error {
		var ev PaymentInitiatedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir logs: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, "payments.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString(formatPaymentLine(ev)); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
		return nil
	}
}

func formatPaymentLine(ev PaymentInitiatedEvent) string {
	return fmt.Sprintf("[%s] Payment initiated | transaction_id=%s | gateway=%s | invoice_id=%d | invoice=%q | contact_id=%d | amount=%s %s | session_id=%s\n",
		ev.InitiatedAt, ev.TransactionID, ev.Gateway, ev.InvoiceID, ev.InvoiceNumber, ev.ContactID, ev.Amount, ev.Currency, ev.SessionID)
}

// NotificationHandler decodes notification.requested bodies and passes
// them to send.
func NotificationHandler(send func(ctx context.Context, ev NotificationRequestedEvent) error) Handler {
	return func(ctx context.Context, body []byte) error {
		var ev NotificationRequestedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		if ev.InvoiceID == 0 {
			return errors.New("notification without invoice id")
		}
		return send(ctx, ev)
	}
}
