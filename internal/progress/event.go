// Package progress reports a video's advancement as a stream of events read
// from the record store. It holds no state of its own beyond one subscription.
package progress

import (
	"fmt"

	"github.com/maauso/shortreel/internal/video"
)

// EventType classifies an event.
type EventType string

const (
	// TypeProgress is a non-terminal update.
	TypeProgress EventType = "progress"
	// TypeError ends a stream on a failed video or an unrecoverable lookup.
	TypeError EventType = "error"
	// TypeDone ends a stream on a completed or cancelled video.
	TypeDone EventType = "done"
)

// DetailInitializing is reported while the record does not exist yet.
const DetailInitializing = "initializing"

// DetailCancelled is reported when a video was cancelled.
const DetailCancelled = "cancelled"

// Event is one progress update.
type Event struct {
	Type       EventType        `json:"type"`
	Status     video.Status     `json:"status,omitempty"`
	Percentage int              `json:"percentage"`
	Detail     string           `json:"detail,omitempty"`
	Assets     video.AssetsView `json:"assets"`
	FinalURL   string           `json:"final_url,omitempty"`
}

// Terminal reports whether no event follows this one.
func (e Event) Terminal() bool {
	return e.Type != TypeProgress
}

// Percentage maps a status to coarse completion. Failed and cancelled videos
// have no percentage of their own and return false.
func Percentage(v *video.Video) (int, bool) {
	switch v.Status {
	case video.StatusPending:
		return 0, true
	case video.StatusScriptGenerated:
		return 10, true
	case video.StatusScriptApproved:
		return 15, true
	case video.StatusStoryboardGenerated:
		return 20, true
	case video.StatusAssetsGenerating:
		total := v.Progress.ImagesTotal
		if total <= 0 {
			return 25, true
		}
		done := min(v.Progress.ImagesDone, total)
		return 25 + 45*done/total, true
	case video.StatusAssetsGenerated:
		return 75, true
	case video.StatusRendering:
		return 85, true
	case video.StatusCompleted:
		return 100, true
	default:
		return 0, false
	}
}

// EventFor builds the event describing v. floor is the highest percentage
// already reported; the result never goes below it.
func EventFor(v *video.Video, floor int) Event {
	pct, ok := Percentage(v)
	if !ok || pct < floor {
		pct = floor
	}
	e := Event{
		Type:       TypeProgress,
		Status:     v.Status,
		Percentage: pct,
		Detail:     detail(v),
		Assets:     video.NewStatusView(v).Assets,
	}
	switch {
	case v.Status == video.StatusCompleted:
		e.Type = TypeDone
		e.FinalURL = v.FinalVideoURL
	case v.Status == video.StatusCancelled:
		e.Type = TypeDone
		e.Detail = DetailCancelled
	case v.Status.IsFailed():
		e.Type = TypeError
		e.Detail = v.ErrorMessage
	}
	return e
}

func detail(v *video.Video) string {
	switch v.Status {
	case video.StatusPending:
		return "waiting for script"
	case video.StatusScriptGenerated:
		return "script ready for review"
	case video.StatusScriptApproved:
		return "script approved"
	case video.StatusStoryboardGenerated:
		return "storyboard ready"
	case video.StatusAssetsGenerating:
		return fmt.Sprintf("generating assets (%d/%d images)", v.Progress.ImagesDone, v.Progress.ImagesTotal)
	case video.StatusAssetsGenerated:
		return "assets ready"
	case video.StatusRendering:
		return "rendering video"
	case video.StatusCompleted:
		return "video ready"
	default:
		return string(v.Status)
	}
}
