// Package callback delivers relay results to the caller's response_url.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ResponseType controls who sees a Slack message.
type ResponseType string

const (
	// ResponseEphemeral is visible only to the user who ran the command.
	ResponseEphemeral ResponseType = "ephemeral"
	// ResponseInChannel is visible to the whole channel.
	ResponseInChannel ResponseType = "in_channel"
)

// ErrorPrefix marks messages that report a failure.
const ErrorPrefix = "❌ Error: "

// Message is the JSON body Slack accepts on a response_url.
type Message struct {
	Text         string       `json:"text"`
	ResponseType ResponseType `json:"response_type"`
}

// NewMessage builds the broadcast message for a relay outcome.
func NewMessage(text string, isError bool) Message {
	if isError {
		text = ErrorPrefix + text
	}
	return Message{Text: text, ResponseType: ResponseInChannel}
}

// Dispatcher posts messages to callback URLs. Delivery is a single attempt.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher constructs a dispatcher. A nil client gets a 10s timeout.
func NewDispatcher(client *http.Client, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, logger: logger}
}

// Deliver posts message to callbackURL and logs any failure. It never
// returns an error: the callback channel has no way to ask for a resend.
func (d *Dispatcher) Deliver(ctx context.Context, callbackURL, message string, isError bool) {
	if err := d.Send(ctx, callbackURL, NewMessage(message, isError)); err != nil {
		d.logger.Warn("callback delivery failed", "error", err)
		return
	}
	d.logger.Debug("callback delivered", "is_error", isError)
}

// Send performs one POST and reports the outcome.
func (d *Dispatcher) Send(ctx context.Context, callbackURL string, msg Message) error {
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" {
		return fmt.Errorf("callback url is required")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("callback rejected: status %d (%s)", resp.StatusCode, compactOutput(out))
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

func compactOutput(out []byte) string {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return "no output"
	}
	const maxLen = 280
	if len(trimmed) <= maxLen {
		return trimmed
	}
	return trimmed[:maxLen] + "..."
}
