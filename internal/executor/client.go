// Package executor talks to the external task execution service.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 4 << 20
)

// SubmissionError is returned when a task could not be handed to the executor.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit task to executor: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// StatusFetchError is returned when a status snapshot could not be read.
type StatusFetchError struct {
	TaskID string
	Err    error
}

func (e *StatusFetchError) Error() string {
	return fmt.Sprintf("failed to get status for task %s: %v", e.TaskID, e.Err)
}

func (e *StatusFetchError) Unwrap() error { return e.Err }

// Client is a single-attempt HTTP client for the executor API.
type Client struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewClient constructs a client for baseURL. A nil httpClient gets a default
// with a 30s timeout so one stuck call cannot eat the whole poll budget.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  httpClient,
		now:     time.Now,
	}
}

// Submit creates a task. There is no retry; the caller owns failure handling.
func (c *Client) Submit(ctx context.Context, sub Submission) (TaskHandle, error) {
	if strings.TrimSpace(sub.Task) == "" {
		return TaskHandle{}, &SubmissionError{Err: fmt.Errorf("task text is required")}
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return TaskHandle{}, &SubmissionError{Err: fmt.Errorf("marshal submission: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(payload))
	if err != nil {
		return TaskHandle{}, &SubmissionError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return TaskHandle{}, &SubmissionError{Err: err}
	}

	id := strings.TrimSpace(out.TaskID)
	if id == "" {
		return TaskHandle{}, &SubmissionError{Err: fmt.Errorf("response has no task_id")}
	}
	return TaskHandle{ID: id, IssuedAt: c.now().UTC()}, nil
}

// GetStatus fetches the current status snapshot for taskID.
func (c *Client) GetStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, &StatusFetchError{Err: fmt.Errorf("task id is required")}
	}

	endpoint := c.baseURL + "/tasks/" + neturl.PathEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &StatusFetchError{TaskID: taskID, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	var status TaskStatus
	if err := c.doJSON(req, &status); err != nil {
		return nil, &StatusFetchError{TaskID: taskID, Err: err}
	}
	if status.Status == "" {
		return nil, &StatusFetchError{TaskID: taskID, Err: fmt.Errorf("response has no status")}
	}
	return &status, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d (%s)", req.Method, req.URL.Path, resp.StatusCode, compactOutput(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
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
