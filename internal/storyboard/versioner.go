// Package storyboard owns edits to a video's scene list. Every edit bumps the
// storyboard version; text edits also mark the scene's image stale so the next
// asset pass regenerates it.
package storyboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/shortreel/internal/video"
)

// Static errors for storyboard edits.
var (
	// ErrEditLocked is returned for edits while rendering or after completion.
	ErrEditLocked = errors.New("storyboard: video can no longer be edited")
	// ErrEmptyEdit is returned when an edit changes neither text nor duration.
	ErrEmptyEdit = errors.New("storyboard: edit has no text or duration")
	// ErrEmptyText is returned when an edit would blank a scene.
	ErrEmptyText = errors.New("storyboard: scene text is empty")
	// ErrNoScenes is returned when marking scenes dirty without any index.
	ErrNoScenes = errors.New("storyboard: no scenes given")
)

// Edit changes one scene. Nil fields are left as they are.
type Edit struct {
	SceneIndex      int
	Text            *string
	DurationSeconds *float64
}

// Change reports what an edit did.
type Change struct {
	Version         int  `json:"storyboard_version"`
	TextChanged     bool `json:"text_changed"`
	DurationChanged bool `json:"duration_changed"`
}

// Versioner applies storyboard edits through the record store.
type Versioner struct {
	repo   video.Repository
	logger *slog.Logger
}

// NewVersioner creates a Versioner.
func NewVersioner(repo video.Repository, logger *slog.Logger) *Versioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Versioner{repo: repo, logger: logger}
}

// MarkDirty flags the scenes for regeneration and bumps the version. Existing
// image URLs are kept until a new image replaces them.
func (s *Versioner) MarkDirty(ctx context.Context, videoID string, indices ...int) (*video.Video, error) {
	if len(indices) == 0 {
		return nil, ErrNoScenes
	}
	v, err := s.repo.Update(ctx, videoID, func(v *video.Video) error {
		if err := editable(v); err != nil {
			return err
		}
		if err := v.MarkDirty(indices...); err != nil {
			return err
		}
		v.StoryboardVersion++
		v.RecountImages()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("scenes marked dirty",
		slog.String("video_id", videoID),
		slog.Any("scenes", video.OneIndexed(indices)),
		slog.Int("storyboard_version", v.StoryboardVersion),
	)
	return v, nil
}

// ApplyEdit changes the text and/or duration of one scene. A text change
// marks the scene dirty; a duration change alone only bumps the version.
// An edit that leaves the scene as it was is a no-op.
func (s *Versioner) ApplyEdit(ctx context.Context, videoID string, e Edit) (Change, error) {
	if e.Text == nil && e.DurationSeconds == nil {
		return Change{}, ErrEmptyEdit
	}
	if e.Text != nil && strings.TrimSpace(*e.Text) == "" {
		return Change{}, ErrEmptyText
	}
	if e.DurationSeconds != nil && *e.DurationSeconds <= 0 {
		return Change{}, fmt.Errorf("%w: got %.2f", video.ErrInvalidDuration, *e.DurationSeconds)
	}

	var change Change
	v, err := s.repo.Update(ctx, videoID, func(v *video.Video) error {
		change = Change{}
		if err := editable(v); err != nil {
			return err
		}
		if !v.HasScene(e.SceneIndex) {
			return fmt.Errorf("%w: %d", video.ErrSceneOutOfRange, e.SceneIndex)
		}
		scene := &v.Storyboard[e.SceneIndex]
		if e.Text != nil {
			text := strings.TrimSpace(*e.Text)
			if text != scene.Text {
				scene.Text = text
				change.TextChanged = true
			}
		}
		if e.DurationSeconds != nil && *e.DurationSeconds != scene.DurationSeconds {
			scene.DurationSeconds = *e.DurationSeconds
			change.DurationChanged = true
		}
		if !change.TextChanged && !change.DurationChanged {
			return nil
		}
		if change.TextChanged {
			if err := v.MarkDirty(e.SceneIndex); err != nil {
				return err
			}
			v.RecountImages()
		}
		v.StoryboardVersion++
		return nil
	})
	if err != nil {
		return Change{}, err
	}
	change.Version = v.StoryboardVersion

	if change.TextChanged || change.DurationChanged {
		s.logger.Info("scene edited",
			slog.String("video_id", videoID),
			slog.Int("scene", e.SceneIndex+1),
			slog.Bool("text_changed", change.TextChanged),
			slog.Bool("duration_changed", change.DurationChanged),
			slog.Int("storyboard_version", v.StoryboardVersion),
		)
	}
	return change, nil
}

func editable(v *video.Video) error {
	switch v.Status {
	case video.StatusRendering, video.StatusCompleted:
		return fmt.Errorf("%w: status %s", ErrEditLocked, v.Status)
	}
	return nil
}
