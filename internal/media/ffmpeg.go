// Package media turns a render plan into a deterministic ffmpeg filter graph
// and runs the encoder.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the frame size or rate is not positive.
	ErrInvalidDimensions = errors.New("media: width, height and fps must be positive")
	// ErrInvalidDuration is returned when a scene duration is not positive.
	ErrInvalidDuration = errors.New("media: scene duration must be positive")
	// ErrNoScenes is returned for a plan without scenes.
	ErrNoScenes = errors.New("media: plan has no scenes")
	// ErrInvalidPlan is returned when a plan is missing an input or output.
	ErrInvalidPlan = errors.New("media: invalid plan")
	// ErrInvalidLook is returned when motion parameters would leave the source frame.
	ErrInvalidLook = errors.New("media: invalid look")
)

// Encoder renders a plan into a video file.
type Encoder interface {
	Encode(ctx context.Context, plan Plan) error
}

// FailureKind categorizes an encoder failure.
type FailureKind string

// Encoder failure kinds.
const (
	// FailureTimeout means the encoder ran past its deadline; retrying may succeed.
	FailureTimeout FailureKind = "timeout"
	// FailureInput means an input could not be opened or decoded.
	FailureInput FailureKind = "input"
	// FailureEncode covers every other non-zero exit.
	FailureEncode FailureKind = "encode"
)

// EncoderError represents a failed ffmpeg run, including the stderr output.
type EncoderError struct {
	Kind   FailureKind
	Args   []string
	Stderr string
	Err    error
}

func (e *EncoderError) Error() string {
	return fmt.Sprintf("ffmpeg %s error: %v\nargs: %v\nstderr: %s", e.Kind, e.Err, e.Args, e.Stderr)
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
func (e *EncoderError) Transient() bool {
	return e.Kind == FailureTimeout
}

// Message returns a short categorized description safe to show users.
func (e *EncoderError) Message() string {
	switch e.Kind {
	case FailureTimeout:
		return "video encoding timed out; retry the render"
	case FailureInput:
		return "video encoding failed: an input asset could not be read; regenerate the assets and retry"
	default:
		return "video encoding failed; retry the render"
	}
}

// inputFailureMarkers are ffmpeg diagnostics printed when an input is unreadable.
var inputFailureMarkers = []string{
	"No such file or directory",
	"Invalid data found when processing input",
	"Error opening input",
	"could not find codec parameters",
	"Could not open file",
	"Unable to open",
}

func classifyFailure(ctxErr error, stderr string) FailureKind {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return FailureTimeout
	}
	for _, marker := range inputFailureMarkers {
		if strings.Contains(stderr, marker) {
			return FailureInput
		}
	}
	return FailureEncode
}

// FFmpegEncoder implements Encoder using the ffmpeg CLI.
type FFmpegEncoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

var _ Encoder = (*FFmpegEncoder)(nil)

// NewFFmpegEncoder creates a new FFmpegEncoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegEncoder(ffmpegPath string) *FFmpegEncoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath}
}

// Encode validates the plan and runs a single ffmpeg invocation.
func (e *FFmpegEncoder) Encode(ctx context.Context, plan Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	return e.runFFmpeg(ctx, plan.Args())
}

// runFFmpeg executes ffmpeg with the given arguments and returns an
// EncoderError carrying stderr if the command fails.
func (e *FFmpegEncoder) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return &EncoderError{
		Kind:   classifyFailure(ctx.Err(), stderr.String()),
		Args:   args,
		Stderr: stderr.String(),
		Err:    err,
	}
}
