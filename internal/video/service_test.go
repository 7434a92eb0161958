package video

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_StageFlow(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), nil)

	v, err := svc.Create(ctx, "title")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, v.Status)

	_, err = svc.RecordScript(ctx, v.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyScript)

	v, err = svc.RecordScript(ctx, v.ID, "Did you know? Octopuses have three hearts. Follow for more.")
	require.NoError(t, err)
	assert.Equal(t, StatusScriptGenerated, v.Status)

	_, err = svc.SetStoryboard(ctx, v.ID, []Scene{{Text: "a", DurationSeconds: 2}})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	v, err = svc.ApproveScript(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScriptApproved, v.Status)

	_, err = svc.SetStoryboard(ctx, v.ID, []Scene{{Text: "a", DurationSeconds: 0}})
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = svc.SetStoryboard(ctx, v.ID, nil)
	assert.ErrorIs(t, err, ErrEmptyStoryboard)

	v, err = svc.SetStoryboard(ctx, v.ID, []Scene{
		{Text: "a", DurationSeconds: 2, ImageURL: "ignored"},
		{Text: "b", DurationSeconds: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusStoryboardGenerated, v.Status)
	assert.Equal(t, 1, v.StoryboardVersion)
	assert.Equal(t, 2, v.Progress.ImagesTotal)
	assert.Equal(t, 0, v.Progress.ImagesDone)
	assert.Empty(t, v.Storyboard[0].ImageURL)

	view, err := svc.Status(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusStoryboardGenerated, view.Status)
	assert.False(t, view.Assets.RenderReady)
	assert.Equal(t, 2, view.Assets.ImagesTotal)
}

func TestService_FailStage(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), nil)
	v, err := svc.Create(ctx, "")
	require.NoError(t, err)

	_, err = svc.FailStage(ctx, v.ID, Stage("nope"), "x")
	assert.ErrorIs(t, err, ErrUnknownStage)

	v, err = svc.FailStage(ctx, v.ID, StageScript, "language model refused the prompt")
	require.NoError(t, err)
	assert.Equal(t, StatusScriptFailed, v.Status)
	assert.Equal(t, "language model refused the prompt", v.ErrorMessage)

	v, err = svc.RecordScript(ctx, v.ID, "retry text")
	require.NoError(t, err)
	assert.Equal(t, StatusScriptGenerated, v.Status)
	assert.Empty(t, v.ErrorMessage)
}

func TestService_GetMissing(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)
	_, err := svc.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrVideoNotFound)
}
