// Package taskqueue provides an image generator backed by an asynchronous
// task queue API: a prompt is submitted, the task is polled until it reaches
// a terminal state, and the produced image is downloaded from its output URL.
package taskqueue

import "github.com/maauso/shortreel/internal/provider"

// Status represents the status of a queued task.
type Status string

// Task statuses reported by the queue.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusComplete  Status = "COMPLETE" // some deployments report "COMPLETE"
	StatusFailed    Status = "FAILED"
	StatusError     Status = "ERROR"
	StatusCanceled  Status = "CANCELED"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusComplete, StatusFailed, StatusError, StatusCanceled:
		return true
	default:
		return false
	}
}

// normalize folds the queue's status aliases into one value per state.
func (s Status) normalize() Status {
	switch s {
	case StatusComplete:
		return StatusCompleted
	case StatusError:
		return StatusFailed
	default:
		return s
	}
}

// SubmitOptions contains parameters sent with every task.
type SubmitOptions struct {
	Width          int    // Image width in pixels
	Height         int    // Image height in pixels
	NegativePrompt string // Things the model should avoid
}

// DefaultSubmitOptions returns portrait options sized for a vertical frame.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		Width:          1080,
		Height:         1920,
		NegativePrompt: "text, watermark, blurry",
	}
}

// taskRequest represents the request body for the submit endpoint.
type taskRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
}

// taskResponse represents the response from the submit endpoint.
type taskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
}

// statusResponse represents the response from the task status endpoint.
type statusResponse struct {
	TaskID  string             `json:"task_id"`
	Status  string             `json:"status"`
	Outputs []taskOutput       `json:"outputs,omitempty"`
	Error   *provider.APIError `json:"error,omitempty"`
}

// taskOutput represents a single output file of a task.
type taskOutput struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// PollResult contains the result of polling a task's status.
type PollResult struct {
	Status    Status
	OutputURL string
	Failure   provider.APIError // set when Status is StatusFailed
}
