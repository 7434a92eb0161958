package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maauso/shortreel/internal/video"
)

// Default subscription timings.
const (
	DefaultPollInterval = time.Second
	DefaultInitGrace    = 30 * time.Second
)

// Reporter turns record store reads into progress events.
type Reporter struct {
	repo     video.Repository
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithPollInterval sets how often a subscription reads the record.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithInitGrace sets how long a subscription waits for a missing record
// before giving up.
func WithInitGrace(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.grace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReporter creates a Reporter.
func NewReporter(repo video.Repository, opts ...Option) *Reporter {
	r := &Reporter{
		repo:     repo,
		interval: DefaultPollInterval,
		grace:    DefaultInitGrace,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current event for the video.
func (r *Reporter) Snapshot(ctx context.Context, videoID string) (Event, error) {
	v, err := r.repo.Get(ctx, videoID)
	if err != nil {
		return Event{}, err
	}
	return EventFor(v, 0), nil
}

// Cancel moves the video to cancelled. Cancelling a cancelled video is a
// no-op; terminal videos reject the transition.
func (r *Reporter) Cancel(ctx context.Context, videoID string) (*video.Video, error) {
	v, err := r.repo.Update(ctx, videoID, func(v *video.Video) error {
		if v.Status == video.StatusCancelled {
			return nil
		}
		return v.Cancel()
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("video cancelled", "video_id", videoID)
	return v, nil
}

// Subscribe streams events for the video until a terminal event is sent or
// ctx is done. The channel is closed afterwards. Identical consecutive events
// are sent once.
func (r *Reporter) Subscribe(ctx context.Context, videoID string) <-chan Event {
	ch := make(chan Event)
	go r.watch(ctx, videoID, ch)
	return ch
}

func (r *Reporter) watch(ctx context.Context, videoID string, ch chan<- Event) {
	defer close(ch)
	log := r.logger.With("video_id", videoID)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var (
		last     Event
		sent     bool
		floor    int
		lastSeen = time.Now()
	)
	send := func(e Event) bool {
		if sent && e == last {
			return true
		}
		select {
		case ch <- e:
			last, sent = e, true
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		v, err := r.repo.Get(ctx, videoID)
		switch {
		case err == nil:
			lastSeen = time.Now()
			e := EventFor(v, floor)
			floor = e.Percentage
			if !send(e) || e.Terminal() {
				return
			}
		case ctx.Err() != nil:
			return
		case time.Since(lastSeen) >= r.grace:
			log.Warn("progress subscription gave up", "error", err)
			detail := "video could not be read"
			if errors.Is(err, video.ErrVideoNotFound) {
				detail = "video not found"
			}
			send(Event{Type: TypeError, Percentage: floor, Detail: detail})
			return
		case errors.Is(err, video.ErrVideoNotFound):
			if !send(Event{Type: TypeProgress, Status: video.StatusPending, Percentage: floor, Detail: DetailInitializing}) {
				return
			}
		default:
			log.Warn("progress read failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
