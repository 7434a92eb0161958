package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkFFmpeg skips test if ffmpeg is not available.
func checkFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH, skipping test")
	}
}

// createTestAudio writes a sine tone of the given length.
func createTestAudio(t *testing.T, outputPath string, durationSec string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration="+durationSec,
		"-ar", "16000", "-ac", "1",
		outputPath,
	)
	out, _ := cmd.CombinedOutput()
	if _, err := os.Stat(outputPath); os.IsNotExist(err) {
		t.Fatalf("failed to create test audio: %s", string(out))
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    time.Duration
		wantErr bool
	}{
		{
			name:   "centiseconds",
			output: "Input #0, mp3, from 'a.mp3':\n  Duration: 00:00:21.34, start: 0.025057, bitrate: 128 kb/s",
			want:   21340 * time.Millisecond,
		},
		{
			name:   "hours and minutes",
			output: "  Duration: 01:02:03.5, bitrate: 64 kb/s",
			want:   time.Hour + 2*time.Minute + 3500*time.Millisecond,
		},
		{
			name:   "microseconds are rounded to milliseconds",
			output: "Duration: 00:00:02.000250",
			want:   2 * time.Second,
		},
		{
			name:    "no banner",
			output:  "a.mp3: No such file or directory",
			wantErr: true,
		},
		{
			name:    "unknown duration",
			output:  "Duration: N/A, bitrate: N/A",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDuration(tt.output)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFFmpegProber_Duration(t *testing.T) {
	checkFFmpeg(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	createTestAudio(t, path, "3.000")

	d, err := NewFFmpegProber("").Duration(context.Background(), path)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d.Seconds(), 0.05)
}

func TestFFmpegProber_MissingFile(t *testing.T) {
	_, err := NewFFmpegProber("").Duration(context.Background(), "/non/existent/file.mp3")
	assert.Error(t, err)
}

func TestFFmpegProber_ContextCancellation(t *testing.T) {
	checkFFmpeg(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	createTestAudio(t, path, "1.000")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFFmpegProber("").Duration(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFFmpegProber_DefaultPath(t *testing.T) {
	assert.Equal(t, "ffmpeg", NewFFmpegProber("").ffmpegPath)
	assert.Equal(t, "/usr/local/bin/ffmpeg", NewFFmpegProber("/usr/local/bin/ffmpeg").ffmpegPath)
}
