// Package notify delivers text messages over SMS and email.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gopkg.in/mail.v2"

	"github.com/iliyamo/property-rental-api/internal/config"
)

// ErrNotConfigured is returned by a channel that has no provider settings.
var ErrNotConfigured = errors.New("channel not configured")

// SMS sends short messages through an HTTP provider.
type SMS struct {
	cfg    config.SMSConfig
	client *http.Client
}

func NewSMS(cfg config.SMSConfig, client *http.Client) *SMS {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &SMS{cfg: cfg, client: client}
}

// SendSMS posts {"from", "to", "text"} to the provider URL.
func (s *SMS) SendSMS(ctx context.Context, to, text string) error {
	if s == nil || s.cfg.URL == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(map[string]string{"from": s.cfg.Sender, "to": to, "text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms: http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Email sends plain-text mail over SMTP.
type Email struct {
	cfg    config.SMTPConfig
	dialer *mail.Dialer
}

func NewEmail(cfg config.SMTPConfig) *Email {
	e := &Email{cfg: cfg}
	if cfg.Host != "" {
		e.dialer = mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
		e.dialer.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return e
}

// SendEmail dials the server for each message. ctx is only checked before
// dialing; the SMTP client has no cancellation hook.
func (e *Email) SendEmail(ctx context.Context, to, subject, body string) error {
	if e == nil || e.dialer == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := mail.NewMessage()
	m.SetHeader("From", e.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	if err := e.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}
