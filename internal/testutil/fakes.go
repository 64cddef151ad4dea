package testutil

import (
	"context"
	"sync"

	"github.com/iliyamo/property-rental-api/internal/queue"
)

// Message is one captured SMS or email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// SMS records texts and fails with Err when it is set.
type SMS struct {
	mu   sync.Mutex
	Err  error
	Sent []Message
}

func (s *SMS) SendSMS(_ context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, Message{To: to, Body: text})
	return nil
}

// Email records mails and fails with Err when it is set.
type Email struct {
	mu   sync.Mutex
	Err  error
	Sent []Message
}

func (s *Email) SendEmail(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, Message{To: to, Subject: subject, Body: body})
	return nil
}

// Publisher captures broker events.
type Publisher struct {
	mu            sync.Mutex
	On            bool
	Err           error
	Payments      []queue.PaymentInitiatedEvent
	Notifications []queue.NotificationRequestedEvent
}

func (p *Publisher) Enabled() bool { return p.On }

func (p *Publisher) PublishPaymentInitiated(_ context.Context, ev queue.PaymentInitiatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Payments = append(p.Payments, ev)
	return nil
}

func (p *Publisher) PublishNotificationRequested(_ context.Context, ev queue.NotificationRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Notifications = append(p.Notifications, ev)
	return nil
}
