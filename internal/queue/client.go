package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of asynq.Client the queue client needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueued describes a queued task. Duplicate is set when an identical task
// was already waiting or running.
type Enqueued struct {
	TaskID    string `json:"task_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate"`
}

// Client enqueues video tasks.
type Client struct {
	enq           Enqueuer
	queue         string
	maxRetry      int
	assetTimeout  time.Duration
	renderTimeout time.Duration
	logger        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithQueue sets the asynq queue name.
func WithQueue(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.queue = name
		}
	}
}

// WithMaxRetry sets how often asynq retries a failed task.
func WithMaxRetry(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetry = n
		}
	}
}

// WithTimeouts sets the per-task deadline for asset passes and renders.
func WithTimeouts(assets, render time.Duration) ClientOption {
	return func(c *Client) {
		if assets > 0 {
			c.assetTimeout = assets
		}
		if render > 0 {
			c.renderTimeout = render
		}
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client that enqueues through enq, usually an *asynq.Client.
func NewClient(enq Enqueuer, opts ...ClientOption) *Client {
	c := &Client{
		enq:           enq,
		queue:         "default",
		maxRetry:      5,
		assetTimeout:  15 * time.Minute,
		renderTimeout: 20 * time.Minute,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnqueueEnsureAssets queues an asset pass. With thenRender the worker queues
// a render once every asset exists.
func (c *Client) EnqueueEnsureAssets(ctx context.Context, videoID string, thenRender bool) (Enqueued, error) {
	return c.enqueue(ctx, TypeEnsureAssets, Payload{VideoID: videoID, ThenRender: thenRender}, c.assetTimeout)
}

// EnqueueRender queues a render.
func (c *Client) EnqueueRender(ctx context.Context, videoID string) (Enqueued, error) {
	return c.enqueue(ctx, TypeRender, Payload{VideoID: videoID}, c.renderTimeout)
}

func (c *Client) enqueue(ctx context.Context, taskType string, p Payload, timeout time.Duration) (Enqueued, error) {
	task, err := newTask(taskType, p)
	if err != nil {
		return Enqueued{}, err
	}
	out := Enqueued{TaskID: TaskID(taskType, p.VideoID), Type: taskType}

	info, err := c.enq.EnqueueContext(ctx, task,
		asynq.TaskID(out.TaskID),
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(timeout),
	)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		out.Duplicate = true
		c.logger.Info("task already queued", "video_id", p.VideoID, "task_id", out.TaskID)
		return out, nil
	case err != nil:
		return Enqueued{}, fmt.Errorf("queue: enqueue %s: %w", taskType, err)
	}

	c.logger.Info("task enqueued", "video_id", p.VideoID, "task_id", info.ID, "queue", info.Queue)
	return out, nil
}
