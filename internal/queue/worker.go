package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/maauso/shortreel/internal/assets"
	"github.com/maauso/shortreel/internal/media"
	"github.com/maauso/shortreel/internal/render"
	"github.com/maauso/shortreel/internal/video"
)

// AssetEnsurer runs an asset pass.
type AssetEnsurer interface {
	EnsureAssets(ctx context.Context, videoID string) (assets.Result, error)
}

// Renderer renders a video.
type Renderer interface {
	Render(ctx context.Context, videoID string) (render.Result, error)
}

// Worker handles video tasks.
type Worker struct {
	assets   AssetEnsurer
	renderer Renderer
	followUp *Client
	logger   *slog.Logger
}

// NewWorker creates a Worker. followUp queues renders after asset passes
// that asked for one; it may be nil.
func NewWorker(a AssetEnsurer, r Renderer, followUp *Client, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{assets: a, renderer: r, followUp: followUp, logger: logger}
}

// Mux routes task types to the worker's handlers.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEnsureAssets, w.HandleEnsureAssets)
	mux.HandleFunc(TypeRender, w.HandleRender)
	return mux
}

// HandleEnsureAssets runs one asset pass. A partial pass returns an error so
// asynq retries it; fatal outcomes skip retries.
func (w *Worker) HandleEnsureAssets(ctx context.Context, t *asynq.Task) error {
	p, err := parsePayload(t)
	if err != nil {
		return err
	}
	log := w.logger.With("video_id", p.VideoID, "task", t.Type())

	res, err := w.assets.EnsureAssets(ctx, p.VideoID)
	if err != nil {
		if permanent(err) {
			log.Warn("asset task dropped", "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	switch res.NextStatus {
	case video.StatusAssetsGenerated:
		log.Info("asset task finished", "images", len(res.Ran.Images), "audio", res.Ran.Audio, "captions", res.Ran.Captions)
		if p.ThenRender && w.followUp != nil {
			if _, err := w.followUp.EnqueueRender(ctx, p.VideoID); err != nil {
				return err
			}
		}
		return nil
	case video.StatusAssetsGenerating:
		return fmt.Errorf("%w: %s", ErrAssetsOutstanding, res.Message)
	case video.StatusCancelled:
		log.Info("asset task stopped, video cancelled")
		return nil
	default:
		return fmt.Errorf("queue: assets ended in %s: %s: %w", res.NextStatus, res.Message, asynq.SkipRetry)
	}
}

// HandleRender renders the video. Only encoder timeouts and storage errors are
// retried.
func (w *Worker) HandleRender(ctx context.Context, t *asynq.Task) error {
	p, err := parsePayload(t)
	if err != nil {
		return err
	}
	log := w.logger.With("video_id", p.VideoID, "task", t.Type())

	res, err := w.renderer.Render(ctx, p.VideoID)
	if err != nil {
		var encErr *media.EncoderError
		switch {
		case errors.As(err, &encErr) && encErr.Transient():
			return err
		case errors.As(err, &encErr), permanent(err):
			log.Warn("render task dropped", "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		default:
			return err
		}
	}
	log.Info("render task finished", "status", res.Status, "final_url", res.FinalURL)
	return nil
}

// permanent reports errors that no retry of the same task can fix.
func permanent(err error) bool {
	return errors.Is(err, video.ErrVideoNotFound) ||
		errors.Is(err, video.ErrInvalidTransition) ||
		errors.Is(err, assets.ErrNoStoryboard) ||
		errors.Is(err, render.ErrValidation) ||
		errors.Is(err, render.ErrNoStoryboard)
}
