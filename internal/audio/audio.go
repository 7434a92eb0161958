// Package audio inspects narration audio files.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrNoDuration is returned when the media banner carries no duration.
var ErrNoDuration = errors.New("audio: could not parse duration")

// Prober reports the playback length of an audio file.
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}
