package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/property-rental-api/internal/config"
)

func TestSMSPostsMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sms-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSMS(config.SMSConfig{URL: srv.URL, APIKey: "sms-key", Sender: "RENTAL"}, srv.Client())
	require.NoError(t, s.SendSMS(context.Background(), "+221771234567", "hello"))
	assert.Equal(t, map[string]string{"from": "RENTAL", "to": "+221771234567", "text": "hello"}, got)
}

func TestSMSProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	s := NewSMS(config.SMSConfig{URL: srv.URL}, srv.Client())
	err := s.SendSMS(context.Background(), "+221771234567", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestUnconfiguredChannels(t *testing.T) {
	assert.ErrorIs(t, NewSMS(config.SMSConfig{}, nil).SendSMS(context.Background(), "x", "y"), ErrNotConfigured)
	assert.ErrorIs(t, NewEmail(config.SMTPConfig{}).SendEmail(context.Background(), "a@b.c", "s", "b"), ErrNotConfigured)
}
