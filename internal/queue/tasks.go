// Package queue runs asset generation and rendering as asynq tasks so that
// the HTTP API can hand long work to separate worker processes.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypeEnsureAssets = "video:ensure_assets"
	TypeRender       = "video:render"
)

// Static errors for task handling.
var (
	// ErrVideoIDRequired is returned for payloads without a video ID.
	ErrVideoIDRequired = errors.New("queue: video id is required")
	// ErrAssetsOutstanding is returned by a partial asset pass so the task is retried.
	ErrAssetsOutstanding = errors.New("queue: assets outstanding")
)

// Payload is the body of every task.
type Payload struct {
	VideoID string `json:"video_id"`
	// ThenRender enqueues a render once the asset pass completes.
	ThenRender bool `json:"then_render,omitempty"`
}

// TaskID is the deterministic asynq task ID for a video's task, so the same
// stage is never queued twice at once.
func TaskID(taskType, videoID string) string {
	return taskType + ":" + videoID
}

func newTask(taskType string, p Payload) (*asynq.Task, error) {
	if p.VideoID == "" {
		return nil, ErrVideoIDRequired
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, body), nil
}

func parsePayload(t *asynq.Task) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("queue: decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.VideoID == "" {
		return p, fmt.Errorf("%w: %w", ErrVideoIDRequired, asynq.SkipRetry)
	}
	return p, nil
}
