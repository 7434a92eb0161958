package video

import (
	"context"
	"errors"
)

// Static errors for record store operations.
var (
	// ErrVideoNotFound is returned when a video cannot be found by ID.
	ErrVideoNotFound = errors.New("video: not found")
	// ErrVideoExists is returned when creating a video whose ID is taken.
	ErrVideoExists = errors.New("video: already exists")
)

// UpdateFunc mutates a freshly loaded copy of a video. Returning an error
// aborts the update and nothing is written.
type UpdateFunc func(v *Video) error

// Repository defines the interface for video persistence.
// It acts as a port in the hexagonal architecture pattern and is the only
// synchronization point between concurrent workers.
type Repository interface {
	// Create stores a new video.
	// Returns ErrVideoExists if the ID is already taken.
	Create(ctx context.Context, v *Video) error

	// Get retrieves a video by its unique identifier.
	// Returns ErrVideoNotFound if the video does not exist.
	Get(ctx context.Context, id string) (*Video, error)

	// Update loads the video, applies fn and persists the changed fields as
	// one atomic read-modify-write. It returns the stored result.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Video, error)

	// List returns all videos, oldest first.
	List(ctx context.Context) ([]*Video, error)

	// Delete removes a video.
	// Returns ErrVideoNotFound if the video does not exist.
	Delete(ctx context.Context, id string) error
}
