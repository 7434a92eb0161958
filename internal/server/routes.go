package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /videos", h.CreateVideo)
	mux.HandleFunc("GET /videos/{id}", h.GetVideo)
	mux.HandleFunc("DELETE /videos/{id}", h.DeleteVideo)

	mux.HandleFunc("PUT /videos/{id}/script", h.RecordScript)
	mux.HandleFunc("POST /videos/{id}/script/approve", h.ApproveScript)
	mux.HandleFunc("PUT /videos/{id}/storyboard", h.SetStoryboard)
	mux.HandleFunc("PATCH /videos/{id}/scenes/{index}", h.EditScene)
	mux.HandleFunc("POST /videos/{id}/scenes/dirty", h.MarkDirty)

	mux.HandleFunc("POST /videos/{id}/assets", h.EnsureAssets)
	mux.HandleFunc("POST /videos/{id}/render", h.Render)
	mux.HandleFunc("POST /videos/{id}/jobs", h.EnqueueJob)
	mux.HandleFunc("POST /videos/{id}/cancel", h.CancelVideo)
	mux.HandleFunc("GET /videos/{id}/progress", h.StreamProgress)

	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
