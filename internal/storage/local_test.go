package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	dir := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{
		TempDir: filepath.Join(dir, "tmp"),
		RootDir: filepath.Join(dir, "blobs"),
		BaseURL: "http://cdn.local/assets/",
	})
	require.NoError(t, err)
	return s
}

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directories", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewLocalStorage(LocalConfig{TempDir: filepath.Join(dir, "tmp")})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(dir, "tmp"), s.TempDir())
		assert.Equal(t, filepath.Join(dir, "tmp", "blobs"), s.RootDir())
		assert.DirExists(t, s.RootDir())
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		s, err := NewLocalStorage(LocalConfig{})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(os.TempDir(), "shortreel"), s.TempDir())
	})
}

func TestLocalStorage_TempFiles(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	path, err := s.SaveTemp(ctx, "scene.png", bytes.NewReader([]byte("test data")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, s.TempDir()))
	assert.Equal(t, ".png", filepath.Ext(path), "extension is kept so ffmpeg can sniff the format")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "test data", string(content))

	require.NoError(t, s.CleanupTemp(ctx, []string{path, "/non/existent/file"}))
	assert.NoFileExists(t, path)
}

func TestLocalStorage_TempRespectsCancellation(t *testing.T) {
	s := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveTemp(ctx, "x", bytes.NewReader(nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.CleanupTemp(ctx, []string{"/some/path"}), context.Canceled)
}

func TestLocalStorage_BlobLifecycle(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()
	key := SceneImageKey("vid-1", 0)

	url, err := s.Put(ctx, key, []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/assets/videos/vid-1/scenes/001.png", url)

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	// Overwrite replaces content.
	_, err = s.Put(ctx, key, []byte("png-v2"), "image/png")
	require.NoError(t, err)
	data, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-v2"), data)

	_, err = s.Put(ctx, Key("vid-1", KindAudio, 0), []byte("mp3"), "audio/mpeg")
	require.NoError(t, err)
	_, err = s.Put(ctx, Key("vid-2", KindAudio, 0), []byte("mp3"), "audio/mpeg")
	require.NoError(t, err)

	keys, err := s.List(ctx, VideoPrefix("vid-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"videos/vid-1/audio.mp3", "videos/vid-1/scenes/001.png"}, keys)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key), "deleting a missing key is not an error")

	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_FileURLWithoutBase(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{TempDir: dir})
	require.NoError(t, err)

	url, err := s.Put(context.Background(), "videos/a/final.mp4", []byte("mp4"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "/videos/a/final.mp4"))
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	for _, key := range []string{"", "..", "../etc/passwd", "videos/../../x"} {
		_, err := s.Put(ctx, key, []byte("x"), "")
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "videos/v/scenes/001.png", Key("v", KindSceneImage, 0))
	assert.Equal(t, "videos/v/scenes/012.png", SceneImageKey("v", 11))
	assert.Equal(t, "videos/v/audio.mp3", Key("v", KindAudio, 0))
	assert.Equal(t, "videos/v/captions.srt", Key("v", KindCaptions, 0))
	assert.Equal(t, "videos/v/final.mp4", Key("v", KindFinal, 0))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", ContentTypeFor("a/b.PNG"))
	assert.Equal(t, "audio/mpeg", ContentTypeFor("audio.mp3"))
	assert.Equal(t, "video/mp4", ContentTypeFor("final.mp4"))
	assert.Equal(t, "application/x-subrip", ContentTypeFor("captions.srt"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("blob"))
}
