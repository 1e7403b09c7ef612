package api

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/antigravity-dev/taskrelay/internal/callback"
)

const (
	usageMessage              = "❌ Usage: /goose <your task description>"
	missingResponseURLMessage = "❌ Missing response_url from Slack"
	defaultUserName           = "unknown"
)

// SlackResponse is the synchronous JSON body returned to Slack.
type SlackResponse struct {
	Text         string                `json:"text"`
	ResponseType callback.ResponseType `json:"response_type"`
}

// Command is a parsed slash-command invocation.
type Command struct {
	Text        string
	ResponseURL string
	UserName    string
}

// ValidationError rejects a command before anything is spawned. Message is
// shown to the invoking user as-is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s", e.Field)
}

// ParseCommand extracts and validates the slash-command form fields. The
// returned Command is populated as far as parsing got, even on error.
func ParseCommand(form url.Values) (Command, error) {
	cmd := Command{
		Text:        strings.TrimSpace(form.Get("text")),
		ResponseURL: strings.TrimSpace(form.Get("response_url")),
		UserName:    strings.TrimSpace(form.Get("user_name")),
	}
	if cmd.UserName == "" {
		cmd.UserName = defaultUserName
	}

	if cmd.Text == "" {
		return cmd, &ValidationError{Field: "text", Message: usageMessage}
	}
	if cmd.ResponseURL == "" {
		return cmd, &ValidationError{Field: "response_url", Message: missingResponseURLMessage}
	}
	return cmd, nil
}

// Acknowledgment is the immediate reply for an accepted command.
func Acknowledgment(user string) SlackResponse {
	return ephemeral(fmt.Sprintf("🤖 Processing your request, %s...", user))
}

func internalError(err error) SlackResponse {
	return ephemeral(fmt.Sprintf("❌ Internal server error: %v", err))
}

func validationResponse(err error) (SlackResponse, bool) {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return SlackResponse{}, false
	}
	return ephemeral(verr.Message), true
}

func ephemeral(text string) SlackResponse {
	return SlackResponse{Text: text, ResponseType: callback.ResponseEphemeral}
}
