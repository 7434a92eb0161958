// Package server provides the HTTP API for shortreel.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"github.com/maauso/shortreel/internal/assets"
	"github.com/maauso/shortreel/internal/video"
)

// CreateVideoRequest is the HTTP request body for creating a video.
type CreateVideoRequest struct {
	// Title is a human-readable label for the video.
	Title string `json:"title" validate:"required,max=200"`
}

// ScriptRequest is the HTTP request body for recording a script.
type ScriptRequest struct {
	// Text is the narration text.
	Text string `json:"text" validate:"required,max=5000"`
}

// SceneRequest is one storyboard scene in a StoryboardRequest.
type SceneRequest struct {
	Text            string  `json:"text" validate:"required,max=1000"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gt=0,lte=60"`
}

// StoryboardRequest is the HTTP request body for setting the storyboard.
type StoryboardRequest struct {
	Scenes []SceneRequest `json:"scenes" validate:"required,min=1,max=50,dive"`
}

// SceneEditRequest is the HTTP request body for editing one scene.
// At least one field must be set.
type SceneEditRequest struct {
	Text            *string  `json:"text" validate:"omitempty,min=1,max=1000"`
	DurationSeconds *float64 `json:"duration_seconds" validate:"omitempty,gt=0,lte=60"`
}

// MarkDirtyRequest is the HTTP request body for flagging scenes for regeneration.
type MarkDirtyRequest struct {
	// Scenes holds zero-based scene indices.
	Scenes []int `json:"scenes" validate:"required,min=1,dive,min=0"`
}

// EnqueueRequest is the HTTP request body for queueing background work.
type EnqueueRequest struct {
	// Stage is "assets", "render", or "all" (assets, then render).
	Stage string `json:"stage" validate:"required,oneof=assets render all"`
}

// SceneEditResponse is the HTTP response after a scene edit.
type SceneEditResponse struct {
	StoryboardVersion int   `json:"storyboard_version"`
	TextChanged       bool  `json:"text_changed"`
	DurationChanged   bool  `json:"duration_changed"`
	DirtyScenes       []int `json:"dirty_scenes"`
}

// EnsureAssetsResponse is the HTTP response of an asset pass.
type EnsureAssetsResponse struct {
	OK          bool             `json:"ok"`
	Ran         assets.Ran       `json:"ran"`
	URLs        assets.URLs      `json:"urls"`
	NextStatus  video.Status     `json:"next_status"`
	Message     string           `json:"message,omitempty"`
	Outstanding []string         `json:"outstanding,omitempty"`
	Failures    []assets.Failure `json:"failures,omitempty"`
}

// RenderResponse is the HTTP response of a successful render.
type RenderResponse struct {
	OK              bool         `json:"ok"`
	FinalURL        string       `json:"final_url,omitempty"`
	DurationSeconds float64      `json:"duration_seconds"`
	Status          video.Status `json:"status"`
}

// RenderValidationResponse lists what keeps a video from being rendered.
type RenderValidationResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code"`
	// MissingScenes holds 1-indexed scene numbers.
	MissingScenes []int `json:"missing_scenes,omitempty"`
	MissingAudio  bool  `json:"missing_audio,omitempty"`
}

// EnqueueResponse is the HTTP response after queueing work.
type EnqueueResponse struct {
	TaskID    string `json:"task_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
