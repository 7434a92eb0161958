package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/shortreel/internal/config"
	"github.com/maauso/shortreel/internal/server"
	"github.com/maauso/shortreel/internal/video"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		AllowedOrigins:       []string{"*"},
		DBDriver:             config.DBDriverSQLite,
		DBDSN:                filepath.Join(dir, "shortreel.db"),
		BlobBackend:          config.BlobLocal,
		TempDir:              filepath.Join(dir, "tmp"),
		ProviderBaseURL:      "http://gen.invalid",
		ProviderTimeout:      time.Second,
		ProviderMaxRetries:   1,
		Transcription:        true,
		ImageBackend:         config.ImagesHTTP,
		MaxConcurrentImages:  2,
		CaptionWPM:           160,
		FFmpegPath:           "ffmpeg",
		WorkerConcurrency:    1,
		QueueName:            "default",
		ProgressPollInterval: 10 * time.Millisecond,
		ProgressInitGrace:    time.Second,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_LocalSQLite(t *testing.T) {
	cfg := testConfig(t)
	deps, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, deps.Close()) })

	assert.NotNil(t, deps.Repo)
	assert.NotNil(t, deps.Orchestrator)
	assert.NotNil(t, deps.Pipeline)
	assert.NotNil(t, deps.Progress)
	assert.Nil(t, deps.Queue)
	assert.Nil(t, deps.Worker)

	_, err = deps.NewWorkerServer(cfg, quietLogger())
	assert.ErrorIs(t, err, ErrQueueNotConfigured)
}

func TestNewDependencies_TaskQueueImages(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImageBackend = config.ImagesTaskQueue
	cfg.ImageQueueURL = "http://queue.invalid/v1/tasks"
	cfg.Transcription = false

	deps, err := NewDependencies(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	assert.NotNil(t, deps.Orchestrator)
}

func TestHandlers_ServeVideoLifecycle(t *testing.T) {
	cfg := testConfig(t)
	logger := quietLogger()
	deps, err := NewDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	router := server.NewRouter(deps.Handlers(cfg, logger), logger, server.Config{AllowedOrigins: cfg.AllowedOrigins})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/videos", strings.NewReader(`{"title":"Glaciers"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Without Redis the jobs endpoint is unavailable.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/videos/x/jobs", strings.NewReader(`{"stage":"assets"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpenDatabase_SQLite(t *testing.T) {
	cfg := testConfig(t)
	db, err := openDatabase(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	_ = sqlDB.Close()
}

func TestOpenDatabase_SQLiteSerializesUpdates(t *testing.T) {
	cfg := testConfig(t)
	db, err := openDatabase(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	repo, err := video.NewGormRepository(db)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, video.NewWithID("vid-concurrent", "Glaciers")))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, "vid-concurrent", func(v *video.Video) error {
				v.StoryboardVersion++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, "vid-concurrent")
	require.NoError(t, err)
	assert.Equal(t, 20, got.StoryboardVersion)
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"shortreel.db", "shortreel.db?_txlock=immediate"},
		{"file:shortreel.db?cache=shared", "file:shortreel.db?cache=shared&_txlock=immediate"},
		{"file:x.db?_txlock=exclusive", "file:x.db?_txlock=exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.in))
		})
	}
}
