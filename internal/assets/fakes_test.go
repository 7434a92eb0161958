package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maauso/shortreel/internal/provider"
	"github.com/maauso/shortreel/internal/storage"
	"github.com/maauso/shortreel/internal/video"
)

// fakeImages returns an image per prompt and records calls. fail maps a
// prompt to the error returned for it; before runs ahead of every call.
type fakeImages struct {
	mu     sync.Mutex
	calls  map[string]int
	fail   map[string]error
	before func(prompt string)
}

func newFakeImages() *fakeImages {
	return &fakeImages{calls: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeImages) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if f.before != nil {
		f.before(prompt)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[prompt]++
	if err := f.fail[prompt]; err != nil {
		return nil, err
	}
	return []byte("png:" + prompt), nil
}

func (f *fakeImages) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeImages) count(prompt string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[prompt]
}

type fakeSpeech struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + text), nil
}

type fakeTranscriber struct {
	vtt string
	err error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return f.vtt, f.err
}

type fakeProber struct {
	d   time.Duration
	err error
}

func (f *fakeProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	return f.d, f.err
}

// recordingRepo records images_done after every committed update, in commit order.
type recordingRepo struct {
	video.Repository
	mu   sync.Mutex
	done []int
}

func (r *recordingRepo) Update(ctx context.Context, id string, fn video.UpdateFunc) (*video.Video, error) {
	return r.Repository.Update(ctx, id, func(v *video.Video) error {
		if err := fn(v); err != nil {
			return err
		}
		r.mu.Lock()
		r.done = append(r.done, v.Progress.ImagesDone)
		r.mu.Unlock()
		return nil
	})
}

func providerErr(kind provider.Kind) error {
	return provider.NewError(kind, "fakegen", provider.OpImage, errors.New("upstream said no"))
}

func sceneText(i int) string {
	return fmt.Sprintf("Scene %d text.", i+1)
}

type fixture struct {
	repo   video.Repository
	store  *storage.LocalStorage
	images *fakeImages
	speech *fakeSpeech
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{TempDir: t.TempDir(), BaseURL: "http://cdn.test"})
	require.NoError(t, err)
	return &fixture{
		repo:   video.NewMemoryRepository(),
		store:  store,
		images: newFakeImages(),
		speech: &fakeSpeech{},
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	return NewOrchestrator(f.repo, f.store, f.images, f.speech, opts...)
}

// seed stores a video with n scenes in storyboard_generated.
func (f *fixture) seed(t *testing.T, n int) *video.Video {
	t.Helper()
	v := video.New("Octopus facts")
	v.Status = video.StatusStoryboardGenerated
	v.ScriptText = "Octopuses have three hearts. Two pump blood to the gills. Follow for more facts!"
	for i := range n {
		v.Storyboard = append(v.Storyboard, video.Scene{Text: sceneText(i), DurationSeconds: 3})
	}
	v.StoryboardVersion = 1
	v.RecountImages()
	require.NoError(t, f.repo.Create(context.Background(), v))
	return v
}

func (f *fixture) get(t *testing.T, id string) *video.Video {
	t.Helper()
	v, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return v
}
