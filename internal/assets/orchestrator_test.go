package assets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/shortreel/internal/captions"
	"github.com/maauso/shortreel/internal/provider"
	"github.com/maauso/shortreel/internal/storage"
	"github.com/maauso/shortreel/internal/video"
)

func TestEnsureAssets_GeneratesEverything(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 5)

	res, err := f.orchestrator().EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, res.Ran.Images)
	assert.True(t, res.Ran.Audio)
	assert.True(t, res.Ran.Captions)
	assert.Equal(t, video.StatusAssetsGenerated, res.NextStatus)
	assert.Empty(t, res.Outstanding)
	assert.Empty(t, res.Failures)
	assert.Equal(t, "http://cdn.test/videos/"+v.ID+"/audio.mp3", res.URLs.Audio)
	assert.Equal(t, "http://cdn.test/videos/"+v.ID+"/captions.srt", res.URLs.Captions)

	got := f.get(t, v.ID)
	assert.Equal(t, video.StatusAssetsGenerated, got.Status)
	assert.Equal(t, video.Progress{ImagesDone: 5, ImagesTotal: 5, AudioDone: true, CaptionsDone: true}, got.Progress)
	assert.Equal(t, "http://cdn.test/videos/"+v.ID+"/scenes/003.png", got.Storyboard[2].ImageURL)
	assert.True(t, got.RenderReady())

	srt, err := f.store.Get(context.Background(), storage.Key(v.ID, storage.KindCaptions, 0))
	require.NoError(t, err)
	cues, err := captions.ParseSRT(string(srt))
	require.NoError(t, err)
	assert.NotEmpty(t, cues)
}

func TestEnsureAssets_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 3)
	o := f.orchestrator()

	_, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)
	before := f.get(t, v.ID)

	res, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.False(t, res.Ran.Any())
	assert.Empty(t, res.Ran.Images)
	assert.Equal(t, video.StatusAssetsGenerated, res.NextStatus)
	assert.Equal(t, 3, f.images.total())
	assert.Equal(t, 1, f.speech.calls)
	assert.Equal(t, before, f.get(t, v.ID))
}

func TestEnsureAssets_ToleratesTransientSceneFailure(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 5)
	f.images.fail[sceneText(2)] = providerErr(provider.KindTransient)
	o := f.orchestrator()

	res, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 3, 4}, res.Ran.Images)
	assert.Equal(t, video.StatusAssetsGenerating, res.NextStatus)
	assert.True(t, res.Retryable())
	assert.Equal(t, []string{"scene 3 image"}, res.Outstanding)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, Failure{Asset: AssetImage, Scene: 3, Kind: provider.KindTransient, Message: res.Failures[0].Message}, res.Failures[0])
	assert.NotContains(t, res.Failures[0].Message, "upstream said no")

	got := f.get(t, v.ID)
	assert.Equal(t, 4, got.Progress.ImagesDone)
	assert.Empty(t, got.ErrorMessage)
	assert.True(t, got.Progress.CaptionsDone, "captions do not wait for images")

	// The retry only asks for the missing scene.
	delete(f.images.fail, sceneText(2))
	res, err = o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, res.Ran.Images)
	assert.False(t, res.Ran.Audio)
	assert.Equal(t, video.StatusAssetsGenerated, res.NextStatus)
	assert.Equal(t, 1, f.images.count(sceneText(0)))
	assert.Equal(t, 2, f.images.count(sceneText(2)))
}

func TestEnsureAssets_PolicyViolationNamesScene(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 5)
	f.images.fail[sceneText(1)] = providerErr(provider.KindPolicyViolation)

	res, err := f.orchestrator().EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, video.StatusAssetsFailed, res.NextStatus)
	assert.False(t, res.Retryable())
	assert.Equal(t, []int{0, 2, 3, 4}, res.Ran.Images, "other scenes continue")

	got := f.get(t, v.ID)
	assert.Equal(t, video.StatusAssetsFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "scene 2:")
	assert.Contains(t, got.ErrorMessage, "content policy")
	assert.Equal(t, 4, got.Progress.ImagesDone)
}

func TestEnsureAssets_QuotaStopsNewDispatches(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 5)
	f.images.fail[sceneText(0)] = providerErr(provider.KindQuotaExceeded)

	res, err := f.orchestrator(WithMaxConcurrentImages(1)).EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, f.images.total())
	assert.Equal(t, video.StatusAssetsFailed, res.NextStatus)
	assert.Contains(t, res.Message, "quota exceeded")
	assert.False(t, res.Ran.Captions)
	assert.Contains(t, res.Outstanding, "scene 5 image")
}

func TestEnsureAssets_MissingCredentialsIsFatal(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 3)
	f.speech.err = provider.NewError(provider.KindMissingCredentials, "voicegen", provider.OpSpeech, ErrAudioRequired)

	res, err := f.orchestrator().EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, video.StatusAssetsFailed, res.NextStatus)
	assert.Zero(t, f.images.total())
	got := f.get(t, v.ID)
	assert.Contains(t, got.ErrorMessage, "audio:")
	assert.Contains(t, got.ErrorMessage, "API key")
}

func TestEnsureAssets_RegeneratesOnlyDirtyScenes(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 4)
	o := f.orchestrator()

	_, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	_, err = f.repo.Update(context.Background(), v.ID, func(v *video.Video) error {
		return v.MarkDirty(1)
	})
	require.NoError(t, err)

	res, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, res.Ran.Images)
	assert.False(t, res.Ran.Audio)
	assert.False(t, res.Ran.Captions)
	assert.Equal(t, video.StatusAssetsGenerated, res.NextStatus)
	assert.Equal(t, 2, f.images.count(sceneText(1)))
	assert.Equal(t, 1, f.images.count(sceneText(0)))
	assert.Empty(t, f.get(t, v.ID).DirtyScenes)
}

func TestEnsureAssets_ImagesDoneNeverDecreases(t *testing.T) {
	f := newFixture(t)
	rec := &recordingRepo{Repository: f.repo}
	f.repo = rec
	v := f.seed(t, 8)
	f.images.fail[sceneText(5)] = providerErr(provider.KindTransient)

	_, err := f.orchestrator(WithMaxConcurrentImages(3)).EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.done)
	for i := 1; i < len(rec.done); i++ {
		assert.GreaterOrEqual(t, rec.done[i], rec.done[i-1], "images_done went backwards at update %d: %v", i, rec.done)
	}
	assert.Equal(t, 7, rec.done[len(rec.done)-1])
}

func TestEnsureAssets_TextEditedDuringGenerationStaysDirty(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 3)
	f.images.before = func(prompt string) {
		if prompt != sceneText(1) {
			return
		}
		_, err := f.repo.Update(context.Background(), v.ID, func(v *video.Video) error {
			v.Storyboard[1].Text = "Edited while drawing."
			return v.MarkDirty(1)
		})
		assert.NoError(t, err)
	}

	res, err := f.orchestrator(WithMaxConcurrentImages(1)).EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	got := f.get(t, v.ID)
	assert.NotEmpty(t, got.Storyboard[1].ImageURL)
	assert.True(t, got.IsDirty(1))
	assert.Equal(t, video.StatusAssetsGenerating, res.NextStatus)
	assert.Equal(t, []string{"scene 2 image"}, res.Outstanding)
}

func TestEnsureAssets_StopsWhenCancelled(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 5)
	f.images.before = func(prompt string) {
		if prompt != sceneText(0) {
			return
		}
		_, err := f.repo.Update(context.Background(), v.ID, func(v *video.Video) error {
			return v.Cancel()
		})
		assert.NoError(t, err)
	}

	res, err := f.orchestrator(WithMaxConcurrentImages(1)).EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	assert.Equal(t, video.StatusCancelled, res.NextStatus)
	assert.Equal(t, 1, f.images.total())
	assert.False(t, res.Ran.Captions)
	assert.Equal(t, video.StatusCancelled, f.get(t, v.ID).Status)
}

func TestEnsureAssets_ResumesCancelledVideo(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 2)
	_, err := f.repo.Update(context.Background(), v.ID, func(v *video.Video) error { return v.Cancel() })
	require.NoError(t, err)

	res, err := f.orchestrator().EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, video.StatusAssetsGenerated, res.NextStatus)
}

func TestEnsureAssets_NoStoryboard(t *testing.T) {
	f := newFixture(t)
	v := video.New("empty")
	v.Status = video.StatusScriptApproved
	require.NoError(t, f.repo.Create(context.Background(), v))
	before := f.get(t, v.ID)

	_, err := f.orchestrator().EnsureAssets(context.Background(), v.ID)
	assert.ErrorIs(t, err, ErrNoStoryboard)
	assert.Equal(t, before, f.get(t, v.ID))
}

func TestEnsureAssets_InvalidTransitionLeavesRecord(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 2)
	_, err := f.repo.Update(context.Background(), v.ID, func(v *video.Video) error {
		v.Status = video.StatusRendering
		return nil
	})
	require.NoError(t, err)
	before := f.get(t, v.ID)

	_, err = f.orchestrator().EnsureAssets(context.Background(), v.ID)
	assert.ErrorIs(t, err, video.ErrInvalidTransition)
	assert.Equal(t, before, f.get(t, v.ID))
	assert.Zero(t, f.images.total())
}

func TestEnsureAssets_UnknownVideo(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator().EnsureAssets(context.Background(), "vid-missing")
	assert.ErrorIs(t, err, video.ErrVideoNotFound)
}

func TestEnsureCaptions_PrefersTranscription(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 1)
	tr := &fakeTranscriber{vtt: "WEBVTT\n\n00:00.000 --> 00:01.500\nOctopuses have\nthree hearts\n\n00:01.500 --> 00:03.000\nFollow for more\n"}

	_, err := f.orchestrator(WithTranscriber(tr)).EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	srt, err := f.store.Get(context.Background(), storage.Key(v.ID, storage.KindCaptions, 0))
	require.NoError(t, err)
	cues, err := captions.ParseSRT(string(srt))
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, "Octopuses have\nthree hearts", cues[0].Text)
	assert.Equal(t, 3*time.Second, cues[1].End)
}

func TestEnsureCaptions_FallsBackToScaledEstimate(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 1)
	tr := &fakeTranscriber{err: providerErr(provider.KindTransient)}
	prober := &fakeProber{d: 12 * time.Second}

	o := f.orchestrator(WithTranscriber(tr), WithProber(prober, f.store))
	_, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	srt, err := f.store.Get(context.Background(), storage.Key(v.ID, storage.KindCaptions, 0))
	require.NoError(t, err)
	cues, err := captions.ParseSRT(string(srt))
	require.NoError(t, err)
	require.NotEmpty(t, cues)
	assert.Equal(t, 12*time.Second, captions.Duration(cues))
	assert.Equal(t, "Octopuses have three hearts.", cues[0].Text)
}

func TestEnsureCaptions_EstimatesWhenTranscriptionCuesAreInvalid(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 1)
	// Parses as WebVTT but the second cue ends before it starts.
	tr := &fakeTranscriber{vtt: "WEBVTT\n\n00:00.000 --> 00:01.500\nOctopuses have\n\n00:03.000 --> 00:02.000\nthree hearts\n"}

	res, err := f.orchestrator(WithTranscriber(tr)).EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)
	assert.True(t, res.Ran.Captions)
	assert.Equal(t, video.StatusAssetsGenerated, res.NextStatus)

	srt, err := f.store.Get(context.Background(), storage.Key(v.ID, storage.KindCaptions, 0))
	require.NoError(t, err)
	cues, err := captions.ParseSRT(string(srt))
	require.NoError(t, err)
	require.NotEmpty(t, cues)
	assert.Equal(t, "Octopuses have three hearts.", cues[0].Text)
	assert.True(t, f.get(t, v.ID).Progress.CaptionsDone)
}

func TestEnsureCaptions_RegeneratedWithAudio(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 2)
	o := f.orchestrator()

	_, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)

	_, err = f.repo.Update(context.Background(), v.ID, func(v *video.Video) error {
		v.AudioURL = ""
		v.Progress.AudioDone = false
		return nil
	})
	require.NoError(t, err)

	res, err := o.EnsureAssets(context.Background(), v.ID)
	require.NoError(t, err)
	assert.True(t, res.Ran.Audio)
	assert.True(t, res.Ran.Captions)
	assert.Empty(t, res.Ran.Images)
	assert.Equal(t, 2, f.speech.calls)
}

func TestEnsureCaptions_RequiresAudio(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 1)

	ran, err := f.orchestrator().EnsureCaptions(context.Background(), v.ID)
	assert.False(t, ran)
	assert.ErrorIs(t, err, ErrAudioRequired)
}

func TestEnsureSceneImage_OutOfRange(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 1)

	_, err := f.orchestrator().EnsureSceneImage(context.Background(), v.ID, 3)
	assert.ErrorIs(t, err, video.ErrSceneOutOfRange)
}

func TestEnsureAudio_CancelledVideo(t *testing.T) {
	f := newFixture(t)
	v := f.seed(t, 1)
	_, err := f.repo.Update(context.Background(), v.ID, func(v *video.Video) error { return v.Cancel() })
	require.NoError(t, err)

	_, err = f.orchestrator().EnsureAudio(context.Background(), v.ID)
	assert.ErrorIs(t, err, ErrVideoCancelled)
	assert.Zero(t, f.speech.calls)
}
