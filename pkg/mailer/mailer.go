// Package mailer is the outbound email boundary. Delivery goes through a
// small HTTP relay exposing a single send endpoint; from the caller's point
// of view it is one sendEmail(to, subject, body) capability with no retry or
// delivery guarantee.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/carebook/carebook/internal/config"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RelayMailer posts {to, subject, text} to the configured relay endpoint.
type RelayMailer struct {
	cfg    config.MailerConfig
	client *http.Client
}

func NewRelayMailer(cfg config.MailerConfig) *RelayMailer {
	return &RelayMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type relayRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type relayResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (m *RelayMailer) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(relayRequest{
		From:    m.cfg.FromAddress,
		To:      to,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("encoding mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.RelayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to mail relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail relay returned status %d", resp.StatusCode)
	}

	var rr relayResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&rr); err != nil {
		// A 200 with an unparseable body still counts as sent.
		return nil
	}
	if !rr.Success {
		return fmt.Errorf("mail relay rejected message: %s", rr.Error)
	}

	return nil
}
