package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/shortreel/internal/assets"
	"github.com/maauso/shortreel/internal/media"
	"github.com/maauso/shortreel/internal/progress"
	"github.com/maauso/shortreel/internal/queue"
	"github.com/maauso/shortreel/internal/render"
	"github.com/maauso/shortreel/internal/storyboard"
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

// JobQueue queues background work.
type JobQueue interface {
	EnqueueEnsureAssets(ctx context.Context, videoID string, thenRender bool) (queue.Enqueued, error)
	EnqueueRender(ctx context.Context, videoID string) (queue.Enqueued, error)
}

// Deps are the services behind the handlers. Queue may be nil, in which case
// the jobs endpoint answers 503.
type Deps struct {
	Videos     *video.Service
	Storyboard *storyboard.Versioner
	Assets     AssetEnsurer
	Render     Renderer
	Progress   *progress.Reporter
	Queue      JobQueue
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	deps           Deps
	validator      *validator.Validate
	logger         *slog.Logger
	allowedOrigins []string
	pongTimeout    time.Duration
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAllowedOrigins restricts which origins may open progress websockets.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handlers) {
		h.allowedOrigins = origins
	}
}

// WithPongTimeout sets how long a progress websocket may go without a pong
// before it is dropped. Pings are sent at nine tenths of this interval.
func WithPongTimeout(d time.Duration) HandlerOption {
	return func(h *Handlers) {
		if d > 0 {
			h.pongTimeout = d
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		deps:           deps,
		validator:      validator.New(),
		logger:         logger,
		allowedOrigins: []string{"*"},
		pongTimeout:    wsPongTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /videos requests.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.deps.Videos.Create(r.Context(), req.Title)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, video.NewStatusView(v))
}

// GetVideo handles GET /videos/{id} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Videos.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteVideo handles DELETE /videos/{id} requests.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Videos.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordScript handles PUT /videos/{id}/script requests.
func (h *Handlers) RecordScript(w http.ResponseWriter, r *http.Request) {
	var req ScriptRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.deps.Videos.RecordScript(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video.NewStatusView(v))
}

// ApproveScript handles POST /videos/{id}/script/approve requests.
func (h *Handlers) ApproveScript(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Videos.ApproveScript(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video.NewStatusView(v))
}

// SetStoryboard handles PUT /videos/{id}/storyboard requests.
func (h *Handlers) SetStoryboard(w http.ResponseWriter, r *http.Request) {
	var req StoryboardRequest
	if !h.decode(w, r, &req) {
		return
	}
	scenes := make([]video.Scene, len(req.Scenes))
	for i, s := range req.Scenes {
		scenes[i] = video.Scene{Text: s.Text, DurationSeconds: s.DurationSeconds}
	}
	v, err := h.deps.Videos.SetStoryboard(r.Context(), r.PathValue("id"), scenes)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video.NewStatusView(v))
}

// EditScene handles PATCH /videos/{id}/scenes/{index} requests. The index is
// zero-based.
func (h *Handlers) EditScene(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "scene index must be an integer", "INVALID_SCENE_INDEX")
		return
	}
	var req SceneEditRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	change, err := h.deps.Storyboard.ApplyEdit(r.Context(), id, storyboard.Edit{
		SceneIndex:      index,
		Text:            req.Text,
		DurationSeconds: req.DurationSeconds,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	v, err := h.deps.Videos.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dirty := v.DirtyScenes
	if dirty == nil {
		dirty = []int{}
	}
	writeJSON(w, http.StatusOK, SceneEditResponse{
		StoryboardVersion: change.Version,
		TextChanged:       change.TextChanged,
		DurationChanged:   change.DurationChanged,
		DirtyScenes:       dirty,
	})
}

// MarkDirty handles POST /videos/{id}/scenes/dirty requests.
func (h *Handlers) MarkDirty(w http.ResponseWriter, r *http.Request) {
	var req MarkDirtyRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.deps.Storyboard.MarkDirty(r.Context(), r.PathValue("id"), req.Scenes...)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video.NewStatusView(v))
}

// EnsureAssets handles POST /videos/{id}/assets requests. It runs a full
// asset pass within the request.
func (h *Handlers) EnsureAssets(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Assets.EnsureAssets(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EnsureAssetsResponse{
		OK:          res.NextStatus != video.StatusAssetsFailed,
		Ran:         res.Ran,
		URLs:        res.URLs,
		NextStatus:  res.NextStatus,
		Message:     res.Message,
		Outstanding: res.Outstanding,
		Failures:    res.Failures,
	})
}

// Render handles POST /videos/{id}/render requests.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.Render.Render(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{
		OK:              res.Status == video.StatusCompleted,
		FinalURL:        res.FinalURL,
		DurationSeconds: res.DurationSeconds,
		Status:          res.Status,
	})
}

// EnqueueJob handles POST /videos/{id}/jobs requests.
func (h *Handlers) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	if h.deps.Queue == nil {
		writeError(w, http.StatusServiceUnavailable, "background processing is not configured", "QUEUE_UNAVAILABLE")
		return
	}
	var req EnqueueRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if _, err := h.deps.Videos.Get(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var (
		out queue.Enqueued
		err error
	)
	switch req.Stage {
	case "render":
		out, err = h.deps.Queue.EnqueueRender(r.Context(), id)
	default:
		out, err = h.deps.Queue.EnqueueEnsureAssets(r.Context(), id, req.Stage == "all")
	}
	if err != nil {
		h.logger.Error("failed to enqueue job",
			slog.String("video_id", id),
			slog.String("stage", req.Stage),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "failed to queue job", "QUEUE_FAILED")
		return
	}
	writeJSON(w, http.StatusAccepted, EnqueueResponse{TaskID: out.TaskID, Type: out.Type, Duplicate: out.Duplicate})
}

// CancelVideo handles POST /videos/{id}/cancel requests.
func (h *Handlers) CancelVideo(w http.ResponseWriter, r *http.Request) {
	v, err := h.deps.Progress.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video.NewStatusView(v))
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeDomainError maps service errors onto HTTP responses. Unknown errors are
// logged and hidden behind a generic message.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *render.ValidationError
		encErr *media.EncoderError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, RenderValidationResponse{
			Error:         verr.Error(),
			Code:          "VALIDATION_ERROR",
			MissingScenes: verr.MissingScenes,
			MissingAudio:  verr.MissingAudio,
		})
	case errors.Is(err, video.ErrVideoNotFound):
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
	case errors.Is(err, video.ErrInvalidTransition), errors.Is(err, video.ErrNotRenderReady):
		writeError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
	case errors.Is(err, storyboard.ErrEditLocked):
		writeError(w, http.StatusConflict, err.Error(), "EDIT_LOCKED")
	case errors.Is(err, assets.ErrNoStoryboard), errors.Is(err, render.ErrNoStoryboard):
		writeError(w, http.StatusConflict, "video has no storyboard", "NO_STORYBOARD")
	case errors.Is(err, video.ErrSceneOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error(), "SCENE_OUT_OF_RANGE")
	case errors.Is(err, video.ErrEmptyScript),
		errors.Is(err, video.ErrEmptyStoryboard),
		errors.Is(err, video.ErrInvalidDuration),
		errors.Is(err, storyboard.ErrEmptyEdit),
		errors.Is(err, storyboard.ErrEmptyText),
		errors.Is(err, storyboard.ErrNoScenes):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.As(err, &encErr):
		writeError(w, http.StatusBadGateway, encErr.Message(), "RENDER_FAILED")
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
