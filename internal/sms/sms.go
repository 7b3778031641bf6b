// Package sms is the outbound text-message capability. Delivery is
// best-effort at the caller's boundary: failures are logged, never
// surfaced to the HTTP response that triggered the send.
package sms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flipsapp/flips-backend/pkg/config"

	"go.uber.org/zap"
)

// Sender delivers a text message to a phone number
type Sender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// TwilioSender sends messages through the Twilio REST API
type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioSender creates a Twilio-backed sender from configuration
func NewTwilioSender(cfg *config.SMSConfig) *TwilioSender {
	return &TwilioSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		baseURL:    "https://api.twilio.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendSMS posts the message to the Twilio Messages endpoint
func (s *TwilioSender) SendSMS(ctx context.Context, to, message string) error {
	data := url.Values{}
	data.Set("To", to)
	data.Set("From", s.fromNumber)
	data.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("twilio responded %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Used in
// development and when no Twilio credentials are configured.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// SendSMS logs the message
func (s *LogSender) SendSMS(_ context.Context, to, message string) error {
	s.log.Info("SMS dispatch (log sender)",
		zap.String("to", to),
		zap.String("message", message))
	return nil
}

// FromConfig picks the Twilio sender when credentials are present and
// falls back to the log sender otherwise
func FromConfig(cfg *config.SMSConfig, log *zap.Logger) Sender {
	if cfg.AccountSID != "" && cfg.AuthToken != "" && cfg.FromNumber != "" {
		return NewTwilioSender(cfg)
	}
	return NewLogSender(log)
}
