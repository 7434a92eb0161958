package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Static errors for stage operations.
var (
	// ErrEmptyScript is returned when recording blank narration text.
	ErrEmptyScript = errors.New("video: script text is empty")
	// ErrEmptyStoryboard is returned when setting a storyboard without scenes.
	ErrEmptyStoryboard = errors.New("video: storyboard has no scenes")
	// ErrInvalidDuration is returned for non-positive scene durations.
	ErrInvalidDuration = errors.New("video: scene duration must be positive")
	// ErrUnknownStage is returned by FailStage for an unrecognised stage.
	ErrUnknownStage = errors.New("video: unknown stage")
)

// Stage names one failable step of the pipeline.
type Stage string

const (
	StageScript     Stage = "script"
	StageStoryboard Stage = "storyboard"
	StageAssets     Stage = "assets"
	StageRender     Stage = "render"
)

// FailureStatus maps a stage to its failed status.
func (s Stage) FailureStatus() (Status, bool) {
	switch s {
	case StageScript:
		return StatusScriptFailed, true
	case StageStoryboard:
		return StatusStoryboardFailed, true
	case StageAssets:
		return StatusAssetsFailed, true
	case StageRender:
		return StatusRenderFailed, true
	default:
		return "", false
	}
}

// AssetsView summarises asset completion for status queries.
type AssetsView struct {
	Images      int  `json:"images"`
	ImagesTotal int  `json:"images_total"`
	Audio       bool `json:"audio"`
	Captions    bool `json:"captions"`
	RenderReady bool `json:"render_ready"`
}

// StatusView is the answer to a status query.
type StatusView struct {
	ID                string     `json:"id"`
	Status            Status     `json:"status"`
	Assets            AssetsView `json:"assets"`
	StoryboardVersion int        `json:"storyboard_version"`
	DirtyScenes       []int      `json:"dirty_scenes,omitempty"`
	FinalVideoURL     string     `json:"final_video_url,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
}

// NewStatusView builds the status query answer for v.
func NewStatusView(v *Video) StatusView {
	return StatusView{
		ID:     v.ID,
		Status: v.Status,
		Assets: AssetsView{
			Images:      v.Progress.ImagesDone,
			ImagesTotal: v.Progress.ImagesTotal,
			Audio:       v.AudioURL != "",
			Captions:    v.CaptionsURL != "",
			RenderReady: v.RenderReady(),
		},
		StoryboardVersion: v.StoryboardVersion,
		DirtyScenes:       v.DirtyScenes,
		FinalVideoURL:     v.FinalVideoURL,
		ErrorMessage:      v.ErrorMessage,
	}
}

// Service owns the stage hooks that sit outside asset generation and render:
// creating a video, recording the script and storyboard, and stage failures.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create persists a new pending video.
func (s *Service) Create(ctx context.Context, title string) (*Video, error) {
	v := New(title)
	if err := s.repo.Create(ctx, v); err != nil {
		s.logger.Error("failed to create video",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.logger.Info("video created", slog.String("video_id", v.ID))
	return v, nil
}

// Get retrieves a video by ID.
func (s *Service) Get(ctx context.Context, id string) (*Video, error) {
	return s.repo.Get(ctx, id)
}

// Status answers the status query for a video.
func (s *Service) Status(ctx context.Context, id string) (StatusView, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return StatusView{}, err
	}
	return NewStatusView(v), nil
}

// RecordScript stores narration text and moves the video to script_generated.
func (s *Service) RecordScript(ctx context.Context, id, text string) (*Video, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyScript
	}
	return s.repo.Update(ctx, id, func(v *Video) error {
		if err := v.TransitionTo(StatusScriptGenerated); err != nil {
			return err
		}
		v.ScriptText = text
		return nil
	})
}

// ApproveScript moves the video to script_approved.
func (s *Service) ApproveScript(ctx context.Context, id string) (*Video, error) {
	return s.repo.Update(ctx, id, func(v *Video) error {
		return v.TransitionTo(StatusScriptApproved)
	})
}

// SetStoryboard stores the scene list and moves the video to
// storyboard_generated. Progress counters restart from the new scene count.
func (s *Service) SetStoryboard(ctx context.Context, id string, scenes []Scene) (*Video, error) {
	if len(scenes) == 0 {
		return nil, ErrEmptyStoryboard
	}
	for i, sc := range scenes {
		if sc.DurationSeconds <= 0 {
			return nil, fmt.Errorf("%w: scene %d", ErrInvalidDuration, i+1)
		}
	}
	updated, err := s.repo.Update(ctx, id, func(v *Video) error {
		if err := v.TransitionTo(StatusStoryboardGenerated); err != nil {
			return err
		}
		v.Storyboard = make([]Scene, len(scenes))
		for i, sc := range scenes {
			v.Storyboard[i] = Scene{Text: sc.Text, DurationSeconds: sc.DurationSeconds}
		}
		v.DirtyScenes = nil
		v.StoryboardVersion++
		v.Progress = Progress{
			AudioDone:    v.AudioURL != "",
			CaptionsDone: v.CaptionsURL != "",
		}
		v.RecountImages()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("storyboard stored",
		slog.String("video_id", id),
		slog.Int("scenes", len(scenes)),
	)
	return updated, nil
}

// FailStage records a fatal failure of an external stage.
func (s *Service) FailStage(ctx context.Context, id string, stage Stage, message string) (*Video, error) {
	status, ok := stage.FailureStatus()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	return s.repo.Update(ctx, id, func(v *Video) error {
		return v.Fail(status, message)
	})
}

// Delete removes a video record.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
