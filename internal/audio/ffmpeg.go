package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// FFmpegProber implements Prober using the ffmpeg CLI.
type FFmpegProber struct {
	ffmpegPath string
}

var _ Prober = (*FFmpegProber)(nil)

// NewFFmpegProber creates a new FFmpegProber.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegProber(ffmpegPath string) *FFmpegProber {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegProber{ffmpegPath: ffmpegPath}
}

// Duration returns the duration of the audio file at path.
func (p *FFmpegProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("audio: stat input: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-hide_banner",
		"-i", path,
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg writes the banner to stderr and may exit non-zero with a null output.
	_ = cmd.Run()
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("audio: probe %s: %w", path, err)
	}

	return ParseDuration(stderr.String())
}

// ParseDuration extracts the "Duration: HH:MM:SS.ff" value from ffmpeg output.
func ParseDuration(output string) (time.Duration, error) {
	m := durationRe.FindStringSubmatch(output)
	if len(m) < 5 {
		return 0, ErrNoDuration
	}

	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	frac, _ := strconv.ParseFloat("0."+m[4], 64)

	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(frac*float64(time.Second)).Round(time.Millisecond)
	return d, nil
}
