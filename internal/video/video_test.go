package video

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyVideo() *Video {
	v := NewWithID("vid-test", "demo")
	v.Status = StatusAssetsGenerated
	v.Storyboard = []Scene{
		{Text: "one", ImageURL: "https://cdn/0.png", DurationSeconds: 2},
		{Text: "two", ImageURL: "https://cdn/1.png", DurationSeconds: 3},
	}
	v.AudioURL = "https://cdn/audio.mp3"
	v.CaptionsURL = "https://cdn/captions.srt"
	v.Progress = Progress{AudioDone: true, CaptionsDone: true}
	v.RecountImages()
	return v
}

func TestNew(t *testing.T) {
	v := New("title")

	if v.ID == "" {
		t.Error("expected video to have an ID")
	}
	if v.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, v.Status)
	}
	if v.CreatedAt.IsZero() || v.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusScriptGenerated, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusRendering, false},
		{StatusScriptGenerated, StatusScriptApproved, true},
		{StatusScriptApproved, StatusStoryboardGenerated, true},
		{StatusStoryboardGenerated, StatusAssetsGenerating, true},
		{StatusStoryboardGenerated, StatusRendering, false},
		{StatusAssetsGenerating, StatusAssetsGenerated, true},
		{StatusAssetsGenerated, StatusRendering, true},
		{StatusAssetsGenerated, StatusAssetsGenerating, true},
		{StatusRendering, StatusCompleted, true},
		{StatusRendering, StatusAssetsGenerating, false},
		{StatusRenderFailed, StatusRendering, true},
		{StatusAssetsFailed, StatusAssetsGenerating, true},
		{StatusCancelled, StatusAssetsGenerating, true},
		{StatusCompleted, StatusRendering, false},
		{StatusCompleted, StatusCancelled, false},
		{Status("bogus"), StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCancelReachableFromEveryNonTerminalStatus(t *testing.T) {
	for from := range validTransitions {
		if from.IsTerminal() {
			continue
		}
		assert.True(t, CanTransition(from, StatusCancelled), "cancel from %s", from)
	}
}

func TestTransitionTo_Invalid(t *testing.T) {
	v := NewWithID("vid-1", "")
	err := v.TransitionTo(StatusRendering)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, StatusPending, ite.From)
	assert.Equal(t, StatusRendering, ite.To)
	assert.Equal(t, StatusPending, v.Status)
}

func TestTransitionTo_RenderingRequiresReadiness(t *testing.T) {
	v := readyVideo()
	v.Storyboard[1].ImageURL = ""

	err := v.TransitionTo(StatusRendering)
	require.ErrorIs(t, err, ErrNotRenderReady)
	assert.Equal(t, StatusAssetsGenerated, v.Status)

	v.Storyboard[1].ImageURL = "https://cdn/1.png"
	v.AudioURL = ""
	require.ErrorIs(t, v.TransitionTo(StatusRendering), ErrNotRenderReady)

	v.AudioURL = "https://cdn/audio.mp3"
	require.NoError(t, v.TransitionTo(StatusRendering))
	assert.Equal(t, StatusRendering, v.Status)
}

func TestTransitionTo_ClearsErrorMessage(t *testing.T) {
	v := readyVideo()
	require.NoError(t, v.Fail(StatusRenderFailed, "encoder crashed"))
	assert.Equal(t, "encoder crashed", v.ErrorMessage)

	require.NoError(t, v.TransitionTo(StatusRendering))
	assert.Empty(t, v.ErrorMessage)
}

func TestTransitionTo_FailedNeedsFail(t *testing.T) {
	v := readyVideo()
	assert.ErrorIs(t, v.TransitionTo(StatusRenderFailed), ErrFailureMessageRequired)
}

func TestFail(t *testing.T) {
	v := readyVideo()

	assert.ErrorIs(t, v.Fail(StatusRenderFailed, ""), ErrFailureMessageRequired)
	assert.ErrorIs(t, v.Fail(StatusCompleted, "x"), ErrInvalidTransition)
	assert.ErrorIs(t, v.Fail(StatusScriptFailed, "x"), ErrInvalidTransition)

	require.NoError(t, v.Fail(StatusRenderFailed, "first"))
	require.NoError(t, v.Fail(StatusRenderFailed, "second"))
	assert.Equal(t, StatusRenderFailed, v.Status)
	assert.Equal(t, "second", v.ErrorMessage)
}

func TestMarkDirty(t *testing.T) {
	v := readyVideo()

	require.NoError(t, v.MarkDirty(1, 0, 1))
	assert.Equal(t, []int{0, 1}, v.DirtyScenes)
	assert.True(t, v.IsDirty(0))
	assert.Equal(t, []int{0, 1}, v.PendingImages())
	assert.Empty(t, v.MissingImages())

	err := v.MarkDirty(0, 5)
	assert.ErrorIs(t, err, ErrSceneOutOfRange)
	assert.Equal(t, []int{0, 1}, v.DirtyScenes)

	v.ClearDirty(0)
	v.ClearDirty(7)
	assert.Equal(t, []int{1}, v.DirtyScenes)
}

func TestRecountImages(t *testing.T) {
	v := readyVideo()
	assert.Equal(t, 2, v.Progress.ImagesDone)
	assert.Equal(t, 2, v.Progress.ImagesTotal)
	assert.True(t, v.AssetsComplete())

	require.NoError(t, v.MarkDirty(0))
	v.RecountImages()
	assert.Equal(t, 1, v.Progress.ImagesDone)
	assert.False(t, v.AssetsComplete())
}

func TestClone_IsDeep(t *testing.T) {
	v := readyVideo()
	require.NoError(t, v.MarkDirty(0))

	c := v.Clone()
	c.Storyboard[0].Text = "changed"
	c.DirtyScenes[0] = 9

	assert.Equal(t, "one", v.Storyboard[0].Text)
	assert.Equal(t, []int{0}, v.DirtyScenes)
}

func TestStoryboardDuration(t *testing.T) {
	assert.InDelta(t, 5.0, readyVideo().StoryboardDuration(), 1e-9)
}

func TestOneIndexed(t *testing.T) {
	assert.Equal(t, []int{1, 3}, OneIndexed([]int{0, 2}))
}
