// Package video provides the Video aggregate for script-to-video generation.
// It includes the status state machine that every stage routes through,
// the record store port and its implementations.
package video

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/maauso/shortreel/internal/video/id"
)

// Status represents the current stage of a Video.
type Status string

const (
	// StatusPending indicates the video was created and awaits a script.
	StatusPending Status = "pending"
	// StatusScriptGenerated indicates narration text has been written.
	StatusScriptGenerated Status = "script_generated"
	// StatusScriptApproved indicates the narration text was approved.
	StatusScriptApproved Status = "script_approved"
	// StatusStoryboardGenerated indicates the scene list exists.
	StatusStoryboardGenerated Status = "storyboard_generated"
	// StatusAssetsGenerating indicates audio, captions or images are outstanding.
	StatusAssetsGenerating Status = "assets_generating"
	// StatusAssetsGenerated indicates every asset exists and is current.
	StatusAssetsGenerated Status = "assets_generated"
	// StatusRendering indicates the encoder is producing the final file.
	StatusRendering Status = "rendering"
	// StatusCompleted indicates the final video was published.
	StatusCompleted Status = "completed"

	StatusScriptFailed     Status = "script_failed"
	StatusStoryboardFailed Status = "storyboard_failed"
	StatusAssetsFailed     Status = "assets_failed"
	StatusRenderFailed     Status = "render_failed"

	// StatusCancelled indicates the video was deliberately stopped.
	StatusCancelled Status = "cancelled"
)

// Static errors for state machine operations.
var (
	// ErrInvalidTransition is matched by every InvalidTransitionError.
	ErrInvalidTransition = errors.New("video: invalid state transition")
	// ErrNotRenderReady is returned when entering rendering without every scene image and the audio.
	ErrNotRenderReady = errors.New("video: not render-ready")
	// ErrFailureMessageRequired is returned when a failed status is entered without a message.
	ErrFailureMessageRequired = errors.New("video: failed status requires an error message")
	// ErrSceneOutOfRange is returned when a scene index is outside the storyboard.
	ErrSceneOutOfRange = errors.New("video: scene index out of range")
)

// InvalidTransitionError describes a rejected status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("video: invalid state transition %s -> %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// validTransitions is the single authority on status changes.
var validTransitions = map[Status][]Status{
	StatusPending:             {StatusScriptGenerated, StatusScriptFailed, StatusCancelled},
	StatusScriptGenerated:     {StatusScriptApproved, StatusScriptFailed, StatusCancelled},
	StatusScriptApproved:      {StatusStoryboardGenerated, StatusStoryboardFailed, StatusCancelled},
	StatusStoryboardGenerated: {StatusAssetsGenerating, StatusCancelled},
	StatusAssetsGenerating:    {StatusAssetsGenerated, StatusAssetsFailed, StatusRendering, StatusRenderFailed, StatusCancelled},
	StatusAssetsGenerated:     {StatusAssetsGenerating, StatusRendering, StatusRenderFailed, StatusCancelled},
	StatusRendering:           {StatusCompleted, StatusRenderFailed, StatusCancelled},
	StatusCompleted:           {},
	StatusScriptFailed:        {StatusScriptGenerated},
	StatusStoryboardFailed:    {StatusStoryboardGenerated},
	StatusAssetsFailed:        {StatusAssetsGenerating, StatusRenderFailed},
	StatusRenderFailed:        {StatusRendering, StatusAssetsGenerating},
	StatusCancelled:           {StatusAssetsGenerating, StatusRendering, StatusRenderFailed},
}

// CanTransition reports whether to is a permitted successor of from.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// IsValid returns true if s is a known status.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsFailed returns true for the *_failed variants.
func (s Status) IsFailed() bool {
	switch s {
	case StatusScriptFailed, StatusStoryboardFailed, StatusAssetsFailed, StatusRenderFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no forward progress happens without a new invocation.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s.IsFailed()
}

// Scene is one storyboard unit.
type Scene struct {
	Text            string  `json:"text"`
	ImageURL        string  `json:"image_url,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Progress counts completed assets.
type Progress struct {
	ImagesDone   int  `json:"images_done"`
	ImagesTotal  int  `json:"images_total"`
	AudioDone    bool `json:"audio_done"`
	CaptionsDone bool `json:"captions_done"`
}

// Video is the persisted record of one generation job.
// Status is only ever changed through TransitionTo and Fail.
type Video struct {
	ID                string
	Title             string
	Status            Status
	ScriptText        string
	Storyboard        []Scene
	StoryboardVersion int
	// DirtyScenes is kept sorted and free of duplicates.
	DirtyScenes   []int
	AudioURL      string
	CaptionsURL   string
	Progress      Progress
	TotalDuration float64
	FinalVideoURL string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New creates a pending Video with a generated ID.
func New(title string) *Video {
	return NewWithID(id.Generate(), title)
}

// NewWithID creates a pending Video with the given ID.
func NewWithID(videoID, title string) *Video {
	now := time.Now().UTC()
	return &Video{
		ID:        videoID,
		Title:     title,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo moves the video to status. Failed targets must go through Fail.
func (v *Video) TransitionTo(status Status) error {
	if status.IsFailed() {
		return ErrFailureMessageRequired
	}
	if !CanTransition(v.Status, status) {
		return &InvalidTransitionError{From: v.Status, To: status}
	}
	if status == StatusRendering && !v.RenderReady() {
		return fmt.Errorf("%w: missing scenes %v, audio present %t", ErrNotRenderReady, OneIndexed(v.MissingImages()), v.AudioURL != "")
	}
	v.Status = status
	v.ErrorMessage = ""
	v.touch()
	return nil
}

// Fail moves the video to a failed status with message. Failing again into the
// status the video already holds only refreshes the message.
func (v *Video) Fail(status Status, message string) error {
	if !status.IsFailed() {
		return &InvalidTransitionError{From: v.Status, To: status}
	}
	if message == "" {
		return ErrFailureMessageRequired
	}
	if v.Status != status && !CanTransition(v.Status, status) {
		return &InvalidTransitionError{From: v.Status, To: status}
	}
	v.Status = status
	v.ErrorMessage = message
	v.touch()
	return nil
}

// Cancel moves the video to cancelled.
func (v *Video) Cancel() error {
	return v.TransitionTo(StatusCancelled)
}

// SceneCount returns the storyboard length.
func (v *Video) SceneCount() int {
	return len(v.Storyboard)
}

// HasScene reports whether i addresses a storyboard scene.
func (v *Video) HasScene(i int) bool {
	return i >= 0 && i < len(v.Storyboard)
}

// IsDirty reports whether scene i must be regenerated.
func (v *Video) IsDirty(i int) bool {
	_, found := slices.BinarySearch(v.DirtyScenes, i)
	return found
}

// MarkDirty adds indices to the dirty set. It rejects the whole call if any
// index is out of range.
func (v *Video) MarkDirty(indices ...int) error {
	for _, i := range indices {
		if !v.HasScene(i) {
			return fmt.Errorf("%w: %d", ErrSceneOutOfRange, i)
		}
	}
	for _, i := range indices {
		if pos, found := slices.BinarySearch(v.DirtyScenes, i); !found {
			v.DirtyScenes = slices.Insert(v.DirtyScenes, pos, i)
		}
	}
	v.touch()
	return nil
}

// ClearDirty removes i from the dirty set.
func (v *Video) ClearDirty(i int) {
	if pos, found := slices.BinarySearch(v.DirtyScenes, i); found {
		v.DirtyScenes = slices.Delete(v.DirtyScenes, pos, pos+1)
	}
}

// SceneNeedsImage reports whether scene i lacks a current image.
func (v *Video) SceneNeedsImage(i int) bool {
	return v.Storyboard[i].ImageURL == "" || v.IsDirty(i)
}

// PendingImages lists scenes whose image is missing or stale, in order.
func (v *Video) PendingImages() []int {
	var out []int
	for i := range v.Storyboard {
		if v.SceneNeedsImage(i) {
			out = append(out, i)
		}
	}
	return out
}

// MissingImages lists scenes without any image, in order.
func (v *Video) MissingImages() []int {
	var out []int
	for i, s := range v.Storyboard {
		if s.ImageURL == "" {
			out = append(out, i)
		}
	}
	return out
}

// RenderReady reports whether every scene has an image and the audio exists.
func (v *Video) RenderReady() bool {
	return len(v.Storyboard) > 0 && len(v.MissingImages()) == 0 && v.AudioURL != ""
}

// AssetsComplete reports whether no asset is missing or stale.
func (v *Video) AssetsComplete() bool {
	return len(v.Storyboard) > 0 &&
		len(v.PendingImages()) == 0 &&
		v.Progress.AudioDone &&
		v.Progress.CaptionsDone
}

// RecountImages derives the image counters from the storyboard.
func (v *Video) RecountImages() {
	done := 0
	for i := range v.Storyboard {
		if !v.SceneNeedsImage(i) {
			done++
		}
	}
	v.Progress.ImagesTotal = len(v.Storyboard)
	v.Progress.ImagesDone = done
}

// StoryboardDuration sums the scene durations.
func (v *Video) StoryboardDuration() float64 {
	var total float64
	for _, s := range v.Storyboard {
		total += s.DurationSeconds
	}
	return total
}

func (v *Video) touch() {
	v.UpdatedAt = time.Now().UTC()
}

// Clone creates a deep copy of the video.
func (v *Video) Clone() *Video {
	c := *v
	c.Storyboard = slices.Clone(v.Storyboard)
	c.DirtyScenes = slices.Clone(v.DirtyScenes)
	return &c
}

// OneIndexed converts scene indices for user-facing messages.
func OneIndexed(indices []int) []int {
	out := make([]int, len(indices))
	for i, idx := range indices {
		out[i] = idx + 1
	}
	return out
}
