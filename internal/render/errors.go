package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Static errors for render operations.
var (
	// ErrValidation is matched by every ValidationError.
	ErrValidation = errors.New("render: validation failed")
	// ErrNoStoryboard is returned when the video has no scenes.
	ErrNoStoryboard = errors.New("render: video has no storyboard")
)

// ValidationError lists what keeps a video from being rendered. Scenes are
// 1-indexed.
type ValidationError struct {
	MissingScenes []int `json:"missing_scenes,omitempty"`
	MissingAudio  bool  `json:"missing_audio,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	switch len(e.MissingScenes) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("missing image in scene %d", e.MissingScenes[0]))
	default:
		nums := make([]string, len(e.MissingScenes))
		for i, n := range e.MissingScenes {
			nums[i] = strconv.Itoa(n)
		}
		parts = append(parts, "missing image in scenes "+strings.Join(nums, ", "))
	}
	if e.MissingAudio {
		parts = append(parts, "missing narration audio")
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
