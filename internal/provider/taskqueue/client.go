package taskqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maauso/shortreel/internal/provider"
)

// Static errors for task queue operations.
var (
	// ErrQueueURLRequired is returned when the queue URL is not provided.
	ErrQueueURLRequired = errors.New("taskqueue: queue URL is required")
	// ErrTokenNotSet is wrapped in a missing-credentials error on every call made without a token.
	ErrTokenNotSet = errors.New("taskqueue: token is not set")
	// ErrTaskIDRequired is returned when the task ID is not provided.
	ErrTaskIDRequired = errors.New("taskqueue: task ID is required")
	// ErrNoTaskIDReturned is returned when the submit response contains no task ID.
	ErrNoTaskIDReturned = errors.New("taskqueue: submit returned no task ID")
	// ErrNoOutputURL is returned when a completed task has no output URL.
	ErrNoOutputURL = errors.New("taskqueue: no output URL in completed task")
	// ErrTaskFailed is returned when the task ends in a failed state.
	ErrTaskFailed = errors.New("taskqueue: task failed")
	// ErrTaskCanceled is returned when the task was canceled remotely.
	ErrTaskCanceled = errors.New("taskqueue: task canceled")
)

var _ provider.ImageGenerator = (*Client)(nil)

// Client submits image tasks to the queue and waits for their output.
type Client struct {
	name         string
	token        string
	queueURL     string
	statusURL    string
	httpClient   *http.Client
	maxRetries   int
	baseBackoff  time.Duration
	pollInterval time.Duration
	submit       SubmitOptions
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithToken sets the API token for authentication.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithName sets the provider name used in error messages.
func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
	}
}

// WithStatusURL sets the task status URL template. "{id}" is replaced by the task ID.
func WithStatusURL(tmpl string) ClientOption {
	return func(c *Client) {
		c.statusURL = tmpl
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// WithPollInterval sets how often a running task is polled.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithSubmitOptions overrides the task parameters.
func WithSubmitOptions(o SubmitOptions) ClientOption {
	return func(c *Client) {
		c.submit = o
	}
}

// NewClient creates a new task queue client. The status URL defaults to
// "{queueURL}/task/{id}/".
func NewClient(queueURL string, opts ...ClientOption) (*Client, error) {
	if queueURL == "" {
		return nil, ErrQueueURLRequired
	}

	c := &Client{
		name:         "image queue",
		queueURL:     strings.TrimRight(queueURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		maxRetries:   3,
		baseBackoff:  1 * time.Second,
		pollInterval: 2 * time.Second,
		submit:       DefaultSubmitOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.statusURL == "" {
		c.statusURL = c.queueURL + "/task/{id}/"
	}
	return c, nil
}

// Generate submits prompt, waits for the task to finish and returns the image bytes.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	taskID, err := c.Submit(ctx, prompt)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		result, err := c.Poll(ctx, taskID)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case StatusCompleted:
			return c.Download(ctx, result.OutputURL)
		case StatusFailed:
			return nil, provider.NewError(failureKind(result.Failure), c.name, provider.OpImage,
				fmt.Errorf("%w: task %s: type=%q code=%q", ErrTaskFailed, taskID, result.Failure.Type, result.Failure.Code))
		case StatusCanceled:
			return nil, provider.NewError(provider.KindTransient, c.name, provider.OpImage,
				fmt.Errorf("%w: task %s", ErrTaskCanceled, taskID))
		}

		select {
		case <-ctx.Done():
			return nil, provider.NewError(provider.KindTransient, c.name, provider.OpImage,
				fmt.Errorf("taskqueue: waiting for task %s: %w", taskID, ctx.Err()))
		case <-ticker.C:
		}
	}
}

// failureKind classifies a failed task by its structured error. A failure
// without an identifier is treated as an infrastructure fault.
func failureKind(f provider.APIError) provider.Kind {
	if f.Type == "" && f.Code == "" {
		return provider.KindTransient
	}
	return provider.ClassifyHTTP(http.StatusUnprocessableEntity, f)
}

// Submit sends an image task and returns its ID.
func (c *Client) Submit(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(taskRequest{
		Prompt:         prompt,
		NegativePrompt: c.submit.NegativePrompt,
		Width:          c.submit.Width,
		Height:         c.submit.Height,
	})
	if err != nil {
		return "", fmt.Errorf("taskqueue: marshal request: %w", err)
	}

	var resp taskResponse
	if err := c.doWithRetry(ctx, http.MethodPost, c.queueURL, body, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", provider.NewError(provider.KindTransient, c.name, provider.OpImage, ErrNoTaskIDReturned)
	}
	return resp.TaskID, nil
}

// Poll checks the status of a task.
func (c *Client) Poll(ctx context.Context, taskID string) (PollResult, error) {
	if taskID == "" {
		return PollResult{}, ErrTaskIDRequired
	}

	url := strings.ReplaceAll(c.statusURL, "{id}", taskID)
	var resp statusResponse
	if err := c.doWithRetry(ctx, http.MethodGet, url, nil, &resp); err != nil {
		return PollResult{}, err
	}

	result := PollResult{Status: Status(resp.Status).normalize()}
	switch result.Status {
	case StatusCompleted:
		if len(resp.Outputs) > 0 {
			result.OutputURL = resp.Outputs[0].URL
		}
	case StatusFailed:
		if resp.Error != nil {
			result.Failure = *resp.Error
		}
	}
	return result, nil
}

// Download fetches the task output.
func (c *Client) Download(ctx context.Context, outputURL string) ([]byte, error) {
	if outputURL == "" {
		return nil, provider.NewError(provider.KindTransient, c.name, provider.OpImage, ErrNoOutputURL)
	}
	var out []byte
	err := provider.Retry(ctx, c.maxRetries, c.baseBackoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
		if err != nil {
			return fmt.Errorf("taskqueue: create download request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return provider.NewError(provider.KindTransient, c.name, provider.OpImage,
				fmt.Errorf("taskqueue: download request failed: %w", err))
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return provider.NewError(provider.KindTransient, c.name, provider.OpImage,
				fmt.Errorf("taskqueue: download failed with status %d", resp.StatusCode))
		}
		out, err = io.ReadAll(resp.Body)
		if err != nil {
			return provider.NewError(provider.KindTransient, c.name, provider.OpImage,
				fmt.Errorf("taskqueue: read download: %w", err))
		}
		return nil
	})
	return out, err
}

// doWithRetry performs an authenticated request with exponential backoff on transient failures.
func (c *Client) doWithRetry(ctx context.Context, method, url string, body []byte, result any) error {
	if c.token == "" {
		return provider.NewError(provider.KindMissingCredentials, c.name, provider.OpImage, ErrTokenNotSet)
	}
	return provider.Retry(ctx, c.maxRetries, c.baseBackoff, func(ctx context.Context) error {
		return c.do(ctx, method, url, body, result)
	})
}

// do performs a single HTTP request.
func (c *Client) do(ctx context.Context, method, url string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("taskqueue: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.NewError(provider.KindTransient, c.name, provider.OpImage,
			fmt.Errorf("taskqueue: request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.NewError(provider.KindTransient, c.name, provider.OpImage,
			fmt.Errorf("taskqueue: read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := provider.ParseAPIError(respBody)
		return provider.NewError(provider.ClassifyHTTP(resp.StatusCode, apiErr), c.name, provider.OpImage,
			fmt.Errorf("taskqueue: status %d: type=%q code=%q", resp.StatusCode, apiErr.Type, apiErr.Code))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return provider.NewError(provider.KindTransient, c.name, provider.OpImage,
				fmt.Errorf("taskqueue: unmarshal response: %w", err))
		}
	}
	return nil
}
