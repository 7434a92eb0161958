package video

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// Records are cloned on the way in and out so callers never share state.
type MemoryRepository struct {
	mu     sync.Mutex
	videos map[string]*Video
}

// NewMemoryRepository creates a new in-memory video repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		videos: make(map[string]*Video),
	}
}

// Create stores a clone of v.
func (r *MemoryRepository) Create(_ context.Context, v *Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[v.ID]; ok {
		return ErrVideoExists
	}
	r.videos[v.ID] = v.Clone()
	return nil
}

// Get returns a clone of the stored video.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	return v.Clone(), nil
}

// Update applies fn to a clone while holding the lock, then swaps it in.
func (r *MemoryRepository) Update(_ context.Context, id string, fn UpdateFunc) (*Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.videos[id]
	if !ok {
		return nil, ErrVideoNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.touch()
	r.videos[id] = next
	return next.Clone(), nil
}

// List returns clones of every video ordered by creation time.
func (r *MemoryRepository) List(_ context.Context) ([]*Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*Video, 0, len(r.videos))
	for _, v := range r.videos {
		result = append(result, v.Clone())
	}
	slices.SortFunc(result, func(a, b *Video) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Delete removes a video from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[id]; !ok {
		return ErrVideoNotFound
	}
	delete(r.videos, id)
	return nil
}
