package assets

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maauso/shortreel/internal/captions"
	"github.com/maauso/shortreel/internal/storage"
	"github.com/maauso/shortreel/internal/video"
)

// load fetches the video and refuses to work on a cancelled one.
func (o *Orchestrator) load(ctx context.Context, videoID string) (*video.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := o.repo.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v.Status == video.StatusCancelled {
		return nil, ErrVideoCancelled
	}
	return v, nil
}

// EnsureSceneImage generates the image of scene i when it is missing or dirty.
// The dirty mark is only cleared if the scene text did not change while the
// image was being generated.
func (o *Orchestrator) EnsureSceneImage(ctx context.Context, videoID string, i int) (bool, error) {
	v, err := o.load(ctx, videoID)
	if err != nil {
		return false, err
	}
	if !v.HasScene(i) {
		return false, fmt.Errorf("%w: %d", video.ErrSceneOutOfRange, i)
	}
	if !v.SceneNeedsImage(i) {
		return false, nil
	}

	prompt := v.Storyboard[i].Text
	img, err := o.images.Generate(ctx, prompt)
	if err != nil {
		o.logger.Warn("scene image failed", "video_id", videoID, "scene", i+1, "error", err)
		return false, err
	}

	url, err := o.blobs.Put(ctx, storage.SceneImageKey(videoID, i), img, "image/png")
	if err != nil {
		return false, fmt.Errorf("assets: store scene %d image: %w", i+1, err)
	}

	_, err = o.repo.Update(ctx, videoID, func(v *video.Video) error {
		if !v.HasScene(i) {
			return nil
		}
		v.Storyboard[i].ImageURL = url
		if v.Storyboard[i].Text == prompt {
			v.ClearDirty(i)
		}
		v.RecountImages()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("assets: record scene %d image: %w", i+1, err)
	}

	o.logger.Info("scene image generated", "video_id", videoID, "scene", i+1)
	return true, nil
}

// EnsureAudio synthesizes the narration when it is missing. New audio
// invalidates the caption track.
func (o *Orchestrator) EnsureAudio(ctx context.Context, videoID string) (bool, error) {
	v, err := o.load(ctx, videoID)
	if err != nil {
		return false, err
	}
	if v.AudioURL != "" && v.Progress.AudioDone {
		return false, nil
	}

	narration, err := o.speech.Synthesize(ctx, narrationText(v))
	if err != nil {
		o.logger.Warn("narration failed", "video_id", videoID, "error", err)
		return false, err
	}

	url, err := o.blobs.Put(ctx, storage.Key(videoID, storage.KindAudio, 0), narration, "audio/mpeg")
	if err != nil {
		return false, fmt.Errorf("assets: store audio: %w", err)
	}

	_, err = o.repo.Update(ctx, videoID, func(v *video.Video) error {
		v.AudioURL = url
		v.Progress.AudioDone = true
		v.Progress.CaptionsDone = false
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("assets: record audio: %w", err)
	}

	o.logger.Info("narration generated", "video_id", videoID, "bytes", len(narration))
	return true, nil
}

// EnsureCaptions builds the caption track when it is missing or older than the
// narration. A transcription of the audio is used when available; otherwise
// the script is paced at a fixed speaking rate.
func (o *Orchestrator) EnsureCaptions(ctx context.Context, videoID string) (bool, error) {
	v, err := o.load(ctx, videoID)
	if err != nil {
		return false, err
	}
	if !captionsNeeded(v) {
		return false, nil
	}
	if v.AudioURL == "" || !v.Progress.AudioDone {
		return false, ErrAudioRequired
	}

	narration, err := o.blobs.Get(ctx, storage.Key(videoID, storage.KindAudio, 0))
	if err != nil {
		return false, fmt.Errorf("assets: load audio: %w", err)
	}

	cues, source := o.transcribe(ctx, videoID, narration)
	srt, err := captions.FormatSRT(cues)
	if err != nil {
		o.logger.Warn("transcription cues rejected, estimating captions", "video_id", videoID, "error", err)
		cues = nil
	}
	if len(cues) == 0 {
		cues = o.estimateCues(ctx, videoID, narrationText(v), narration)
		source = "estimate"
		srt, err = captions.FormatSRT(cues)
		if err != nil {
			return false, fmt.Errorf("assets: encode captions: %w", err)
		}
	}

	url, err := o.blobs.Put(ctx, storage.Key(videoID, storage.KindCaptions, 0), []byte(srt), "application/x-subrip")
	if err != nil {
		return false, fmt.Errorf("assets: store captions: %w", err)
	}

	_, err = o.repo.Update(ctx, videoID, func(v *video.Video) error {
		v.CaptionsURL = url
		v.Progress.CaptionsDone = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("assets: record captions: %w", err)
	}

	o.logger.Info("captions generated", "video_id", videoID, "cues", len(cues), "source", source)
	return true, nil
}

// transcribe returns cues timed by the transcriber, or nil when none is
// configured or the transcription is unusable.
func (o *Orchestrator) transcribe(ctx context.Context, videoID string, narration []byte) ([]captions.Cue, string) {
	if o.transcriber == nil {
		return nil, ""
	}
	vtt, err := o.transcriber.Transcribe(ctx, narration)
	if err != nil {
		o.logger.Warn("transcription failed, estimating captions", "video_id", videoID, "error", err)
		return nil, ""
	}
	cues, err := captions.ParseVTT(vtt)
	if err != nil {
		o.logger.Warn("transcription unreadable, estimating captions", "video_id", videoID, "error", err)
		return nil, ""
	}
	return cues, "transcription"
}

// estimateCues paces the script and stretches it to the narration length when
// the audio can be probed.
func (o *Orchestrator) estimateCues(ctx context.Context, videoID, script string, narration []byte) []captions.Cue {
	cues := captions.Estimate(script, o.estimate)
	if o.prober == nil || o.temp == nil {
		return cues
	}

	path, err := o.temp.SaveTemp(ctx, videoID+"_narration.mp3", bytes.NewReader(narration))
	if err != nil {
		o.logger.Warn("could not stage audio for probing", "video_id", videoID, "error", err)
		return cues
	}
	defer func() { _ = o.temp.CleanupTemp(context.WithoutCancel(ctx), []string{path}) }()

	d, err := o.prober.Duration(ctx, path)
	if err != nil || d <= 0 {
		o.logger.Warn("could not probe narration length", "video_id", videoID, "error", err)
		return cues
	}
	return captions.ScaleTo(cues, d.Truncate(time.Millisecond))
}

func captionsNeeded(v *video.Video) bool {
	return v.CaptionsURL == "" || !v.Progress.CaptionsDone
}

// narrationText is the script, or the scene texts when no script was recorded.
func narrationText(v *video.Video) string {
	if s := strings.TrimSpace(v.ScriptText); s != "" {
		return s
	}
	parts := make([]string, 0, len(v.Storyboard))
	for _, s := range v.Storyboard {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}
