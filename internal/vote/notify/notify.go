// Package notify delivers one-time passcodes to voters over their
// registered contact channel. The core never sees the phone number in
// the clear; delivery goes through a gateway keyed by the stored
// contact fingerprint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/civicstack/ballotcore/pkg/slogx"
)

// Sender dispatches a passcode to a voter. Implementations must not log
// the code.
type Sender interface {
	Dispatch(ctx context.Context, voterID, phoneHash, code string) error
}

// HTTPSender posts delivery requests to an SMS gateway. The gateway
// resolves the contact from the fingerprint; this process never holds
// the plain phone number.
type HTTPSender struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPSender(endpoint string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSender{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSender) Dispatch(ctx context.Context, voterID, phoneHash, code string) error {
	body, err := json.Marshal(map[string]string{
		"recipient_ref": phoneHash,
		"message":       fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: dispatch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: gateway returned status %d", resp.StatusCode)
	}

	slogx.FromContext(ctx).Debug("Passcode dispatched", slog.String("voter_id", voterID))
	return nil
}

// LogSender is the development fallback when no gateway is configured.
// It logs that a dispatch happened, never the code.
type LogSender struct{}

func (LogSender) Dispatch(ctx context.Context, voterID, phoneHash, code string) error {
	slogx.FromContext(ctx).Info("Passcode dispatch (no gateway configured)",
		slog.String("voter_id", voterID),
	)
	return nil
}
