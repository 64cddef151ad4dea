package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iliyamo/property-rental-api/internal/config"
)

// Wave opens checkout sessions on the Wave API.
type Wave struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewWave builds a Wave provider. A nil client gets one with the configured
// timeout.
func NewWave(cfg config.WaveConfig, client *http.Client) *Wave {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Wave{baseURL: strings.TrimRight(cfg.BaseURL, "/"), apiKey: cfg.APIKey, client: client}
}

func (w *Wave) Name() string { return "wave" }

type waveSession struct {
	ID             string `json:"id"`
	CheckoutStatus string `json:"checkout_status"`
	PaymentStatus  string `json:"payment_status"`
	WaveLaunchURL  string `json:"wave_launch_url"`
	CheckoutURL    string `json:"checkout_url"`
}

// Checkout creates a session with POST /v1/checkout/sessions.
func (w *Wave) Checkout(ctx context.Context, req CheckoutRequest) (Session, error) {
	if w.apiKey == "" {
		return Session{}, &Error{Provider: w.Name(), Message: "wave is not configured"}
	}
	body, err := json.Marshal(map[string]string{
		"amount":           amountString(req.Amount, req.Currency),
		"currency":         req.Currency,
		"success_url":      req.SuccessURL,
		"error_url":        req.CancelURL,
		"client_reference": req.TransactionID,
	})
	if err != nil {
		return Session{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+w.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("wave: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Session{}, providerError(w.Name(), resp)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("wave: read body: %w", err)
	}
	var s waveSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("wave: decode: %w", err)
	}
	url := s.WaveLaunchURL
	if url == "" {
		url = s.CheckoutURL
	}
	return Session{
		SessionID:  s.ID,
		PaymentURL: url,
		Status:     "pending",
		Extra: map[string]string{
			"wave_id":         s.ID,
			"checkout_status": s.CheckoutStatus,
			"payment_status":  s.PaymentStatus,
		},
		Raw: raw,
	}, nil
}
