// Package render turns a video's generated assets into the final vertical MP4.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maauso/shortreel/internal/media"
	"github.com/maauso/shortreel/internal/storage"
	"github.com/maauso/shortreel/internal/video"
)

// Result is the outcome of a render. Status is cancelled when the video was
// cancelled while rendering; FinalURL is empty in that case.
type Result struct {
	FinalURL        string       `json:"final_url,omitempty"`
	DurationSeconds float64      `json:"duration_seconds"`
	Status          video.Status `json:"status"`
}

// Pipeline renders videos with a single encoder invocation each.
type Pipeline struct {
	repo    video.Repository
	blobs   storage.BlobStore
	temp    storage.TempStore
	encoder media.Encoder
	look    media.Look
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLook overrides the visual style.
func WithLook(look media.Look) Option {
	return func(p *Pipeline) {
		p.look = look
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPipeline creates a Pipeline.
func NewPipeline(repo video.Repository, blobs storage.BlobStore, temp storage.TempStore, encoder media.Encoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		repo:    repo,
		blobs:   blobs,
		temp:    temp,
		encoder: encoder,
		look:    media.DefaultLook(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render produces the final video. A video whose status does not allow
// rendering is left untouched. Missing assets fail the render before any
// download or encoder run.
func (p *Pipeline) Render(ctx context.Context, videoID string) (Result, error) {
	log := p.logger.With("video_id", videoID)

	v, err := p.repo.Get(ctx, videoID)
	if err != nil {
		return Result{}, err
	}
	if err := checkTransition(v); err != nil {
		return Result{}, err
	}
	if v.SceneCount() == 0 {
		return Result{}, ErrNoStoryboard
	}

	v, err = p.repo.Update(ctx, videoID, func(v *video.Video) error {
		if err := checkTransition(v); err != nil {
			return err
		}
		if verr := validate(v); verr != nil {
			return verr
		}
		return v.TransitionTo(video.StatusRendering)
	})
	var verr *ValidationError
	if errors.As(err, &verr) {
		log.Warn("render rejected", "error", verr.Error())
		if _, ferr := p.repo.Update(ctx, videoID, func(v *video.Video) error {
			return v.Fail(video.StatusRenderFailed, verr.Error())
		}); ferr != nil {
			return Result{}, fmt.Errorf("render: record validation failure: %w", ferr)
		}
		return Result{}, verr
	}
	if err != nil {
		return Result{}, err
	}
	log.Info("render started", "scenes", v.SceneCount(), "captions", v.CaptionsURL != "")

	res, err := p.run(ctx, v)
	if err != nil {
		return Result{}, p.fail(ctx, log, videoID, err)
	}
	return res, nil
}

// checkTransition reports whether v may enter rendering, ignoring assets.
func checkTransition(v *video.Video) error {
	if !video.CanTransition(v.Status, video.StatusRendering) {
		return &video.InvalidTransitionError{From: v.Status, To: video.StatusRendering}
	}
	return nil
}

func validate(v *video.Video) *ValidationError {
	missing := video.OneIndexed(v.MissingImages())
	noAudio := v.AudioURL == ""
	if len(missing) == 0 && !noAudio {
		return nil
	}
	return &ValidationError{MissingScenes: missing, MissingAudio: noAudio}
}

// errCancelled stops a render whose video was cancelled.
var errCancelled = errors.New("render: video was cancelled")

func (p *Pipeline) run(ctx context.Context, v *video.Video) (Result, error) {
	var staged []string
	defer func() {
		if len(staged) > 0 {
			_ = p.temp.CleanupTemp(context.WithoutCancel(ctx), staged)
		}
	}()

	cancelled := func() (Result, error) {
		p.logger.Info("render stopped by cancellation", "video_id", v.ID)
		return Result{Status: video.StatusCancelled}, nil
	}

	if err := p.checkCancelled(ctx, v.ID); err != nil {
		if errors.Is(err, errCancelled) {
			return cancelled()
		}
		return Result{}, err
	}

	plan, files, err := p.stage(ctx, v)
	staged = files
	if err != nil {
		return Result{}, err
	}

	if err := p.checkCancelled(ctx, v.ID); err != nil {
		if errors.Is(err, errCancelled) {
			return cancelled()
		}
		return Result{}, err
	}

	staged = append(staged, plan.OutputPath)
	if err := p.encoder.Encode(ctx, plan); err != nil {
		return Result{}, err
	}

	if err := p.checkCancelled(ctx, v.ID); err != nil {
		if errors.Is(err, errCancelled) {
			return cancelled()
		}
		return Result{}, err
	}

	out, err := os.ReadFile(plan.OutputPath)
	if err != nil {
		return Result{}, fmt.Errorf("render: read output: %w", err)
	}
	finalKey := storage.Key(v.ID, storage.KindFinal, 0)
	url, err := p.blobs.Put(ctx, finalKey, out, "video/mp4")
	if err != nil {
		return Result{}, fmt.Errorf("render: store final video: %w", err)
	}

	total := plan.TotalDuration()
	updated, err := p.repo.Update(ctx, v.ID, func(v *video.Video) error {
		if v.Status == video.StatusCancelled {
			return errCancelled
		}
		v.FinalVideoURL = url
		v.TotalDuration = total
		return v.TransitionTo(video.StatusCompleted)
	})
	if errors.Is(err, errCancelled) {
		_ = p.blobs.Delete(context.WithoutCancel(ctx), finalKey)
		return cancelled()
	}
	if err != nil {
		return Result{}, fmt.Errorf("render: record final video: %w", err)
	}

	p.logger.Info("render completed", "video_id", v.ID, "final_url", url, "duration_seconds", total, "bytes", len(out))
	return Result{FinalURL: url, DurationSeconds: total, Status: updated.Status}, nil
}

// stage downloads every input into the temp store and builds the plan.
// The returned paths must be cleaned up even on error.
func (p *Pipeline) stage(ctx context.Context, v *video.Video) (media.Plan, []string, error) {
	var files []string
	save := func(key, name string) (string, error) {
		data, err := p.blobs.Get(ctx, key)
		if err != nil {
			return "", err
		}
		path, err := p.temp.SaveTemp(ctx, name, bytes.NewReader(data))
		if err != nil {
			return "", err
		}
		files = append(files, path)
		return path, nil
	}

	plan := media.Plan{Look: p.look}
	for i, scene := range v.Storyboard {
		path, err := save(storage.SceneImageKey(v.ID, i), fmt.Sprintf("%s_scene_%03d.png", v.ID, i+1))
		if err != nil {
			return plan, files, &stageError{what: fmt.Sprintf("scene %d image", i+1), err: err}
		}
		plan.Scenes = append(plan.Scenes, media.SceneInput{ImagePath: path, Duration: scene.DurationSeconds})
	}

	path, err := save(storage.Key(v.ID, storage.KindAudio, 0), v.ID+"_narration.mp3")
	if err != nil {
		return plan, files, &stageError{what: "narration audio", err: err}
	}
	plan.AudioPath = path

	if v.CaptionsURL != "" {
		path, err := save(storage.Key(v.ID, storage.KindCaptions, 0), v.ID+"_captions.srt")
		if err != nil {
			return plan, files, &stageError{what: "captions", err: err}
		}
		plan.SubtitlePath = path
	}

	plan.OutputPath = filepath.Join(p.temp.TempDir(), v.ID+"_final.mp4")
	return plan, files, nil
}

type stageError struct {
	what string
	err  error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("render: load %s: %v", e.what, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}

func (p *Pipeline) checkCancelled(ctx context.Context, videoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := p.repo.Get(ctx, videoID)
	if err != nil {
		return err
	}
	if v.Status == video.StatusCancelled {
		return errCancelled
	}
	return nil
}

// fail moves the video to render_failed with a message fit for users and
// returns err.
func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, videoID string, err error) error {
	msg := failureMessage(err)
	log.Error("render failed", "error", err)

	_, uerr := p.repo.Update(context.WithoutCancel(ctx), videoID, func(v *video.Video) error {
		if v.Status == video.StatusCancelled {
			return nil
		}
		return v.Fail(video.StatusRenderFailed, msg)
	})
	if uerr != nil {
		log.Error("could not record render failure", "error", uerr)
	}
	return err
}

func failureMessage(err error) string {
	var encErr *media.EncoderError
	var stErr *stageError
	switch {
	case errors.As(err, &encErr):
		return encErr.Message()
	case errors.As(err, &stErr):
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("the %s is missing from storage; regenerate the assets and retry", stErr.what)
		}
		return fmt.Sprintf("the %s could not be loaded; retry the render", stErr.what)
	case errors.Is(err, context.Canceled):
		return "the render was interrupted; retry the render"
	case errors.Is(err, context.DeadlineExceeded):
		return "the render timed out; retry the render"
	case errors.Is(err, media.ErrInvalidLook), errors.Is(err, media.ErrInvalidDimensions):
		return "the render settings are invalid; contact support"
	default:
		return "the final video could not be produced; retry the render"
	}
}
