// Package bootstrap provides dependency initialization for the shortreel
// server and worker binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/maauso/shortreel/internal/assets"
	"github.com/maauso/shortreel/internal/audio"
	"github.com/maauso/shortreel/internal/captions"
	"github.com/maauso/shortreel/internal/config"
	"github.com/maauso/shortreel/internal/media"
	"github.com/maauso/shortreel/internal/progress"
	"github.com/maauso/shortreel/internal/provider"
	"github.com/maauso/shortreel/internal/provider/httpapi"
	"github.com/maauso/shortreel/internal/provider/taskqueue"
	"github.com/maauso/shortreel/internal/queue"
	"github.com/maauso/shortreel/internal/render"
	"github.com/maauso/shortreel/internal/server"
	"github.com/maauso/shortreel/internal/storage"
	"github.com/maauso/shortreel/internal/storyboard"
	"github.com/maauso/shortreel/internal/video"
)

// ErrQueueNotConfigured is returned when the worker starts without REDIS_ADDR.
var ErrQueueNotConfigured = errors.New("bootstrap: REDIS_ADDR is required for background work")

// blobBackend is the blob store plus the scratch space renders run in.
type blobBackend interface {
	storage.BlobStore
	storage.TempStore
}

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Repo         video.Repository
	Videos       *video.Service
	Storyboard   *storyboard.Versioner
	Orchestrator *assets.Orchestrator
	Pipeline     *render.Pipeline
	Progress     *progress.Reporter

	// Queue and Worker are nil when no Redis address is configured.
	Queue  *queue.Client
	Worker *queue.Worker
	Redis  asynq.RedisConnOpt

	closers []func() error
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	d := &Dependencies{}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		d.closers = append(d.closers, sqlDB.Close)
	}
	repo, err := video.NewGormRepository(db)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.Repo = repo
	logger.Info("record store configured", slog.String("driver", cfg.DBDriver))

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	images, speech, transcriber, err := initProviders(cfg, logger)
	if err != nil {
		_ = d.Close()
		return nil, err
	}

	estimate := captions.DefaultEstimateOptions()
	estimate.WordsPerMinute = cfg.CaptionWPM

	orchOpts := []assets.Option{
		assets.WithProber(audio.NewFFmpegProber(cfg.FFmpegPath), store),
		assets.WithMaxConcurrentImages(cfg.MaxConcurrentImages),
		assets.WithEstimateOptions(estimate),
		assets.WithLogger(logger.With("component", "assets")),
	}
	if transcriber != nil {
		orchOpts = append(orchOpts, assets.WithTranscriber(transcriber))
	}

	d.Videos = video.NewService(repo, logger)
	d.Storyboard = storyboard.NewVersioner(repo, logger)
	d.Orchestrator = assets.NewOrchestrator(repo, store, images, speech, orchOpts...)
	d.Pipeline = render.NewPipeline(repo, store, store, media.NewFFmpegEncoder(cfg.FFmpegPath),
		render.WithLogger(logger.With("component", "render")),
	)
	d.Progress = progress.NewReporter(repo,
		progress.WithPollInterval(cfg.ProgressPollInterval),
		progress.WithInitGrace(cfg.ProgressInitGrace),
		progress.WithLogger(logger.With("component", "progress")),
	)

	if cfg.QueueEnabled() {
		d.Redis = asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		client := asynq.NewClient(d.Redis)
		d.closers = append(d.closers, client.Close)
		d.Queue = queue.NewClient(client,
			queue.WithQueue(cfg.QueueName),
			queue.WithTimeouts(cfg.AssetsTimeout, cfg.RenderTimeout),
			queue.WithClientLogger(logger.With("component", "queue")),
		)
		d.Worker = queue.NewWorker(d.Orchestrator, d.Pipeline, d.Queue, logger.With("component", "worker"))
		logger.Info("background queue configured",
			slog.String("redis_addr", cfg.RedisAddr),
			slog.String("queue", cfg.QueueName),
		)
	}

	return d, nil
}

// Handlers builds the HTTP handlers over the dependencies.
func (d *Dependencies) Handlers(cfg *config.Config, logger *slog.Logger) *server.Handlers {
	deps := server.Deps{
		Videos:     d.Videos,
		Storyboard: d.Storyboard,
		Assets:     d.Orchestrator,
		Render:     d.Pipeline,
		Progress:   d.Progress,
	}
	// A nil *queue.Client must not become a non-nil interface.
	if d.Queue != nil {
		deps.Queue = d.Queue
	}
	return server.NewHandlers(deps, logger, server.WithAllowedOrigins(cfg.AllowedOrigins))
}

// NewWorkerServer creates the asynq server that runs the worker's handlers.
func (d *Dependencies) NewWorkerServer(cfg *config.Config, logger *slog.Logger) (*asynq.Server, error) {
	if d.Worker == nil {
		return nil, ErrQueueNotConfigured
	}
	return queue.NewServer(d.Redis, queue.ServerConfig{
		Concurrency: cfg.WorkerConcurrency,
		Queue:       cfg.QueueName,
	}, logger), nil
}

// Close releases the database and queue connections.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// openDatabase opens the record store selected by DB_DRIVER.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DBDriverMySQL:
		dialector = mysql.Open(cfg.DBDSN)
	default:
		dialector = sqlite.Open(sqliteDSN(cfg.DBDSN))
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	if cfg.DBDriver != config.DBDriverMySQL {
		// SQLite has no row locks: one connection serializes read-modify-write
		// transactions instead of failing them with "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// sqliteDSN makes every transaction take the write lock on BEGIN.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_txlock=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_txlock=immediate"
}

// initStorage creates the blob backend selected by BLOB_BACKEND.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobBackend, error) {
	switch cfg.BlobBackend {
	case config.BlobS3:
		store, err := storage.NewS3Storage(ctx, cfg.TempDir, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return store, nil

	case config.BlobMinIO:
		store, err := storage.NewMinIOStorage(ctx, cfg.TempDir, storage.MinIOConfig{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			Bucket:        cfg.MinIOBucket,
			Region:        cfg.MinIORegion,
			UseSSL:        cfg.MinIOUseSSL,
			PublicBaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create MinIO storage: %w", err)
		}
		logger.Info("MinIO storage configured",
			slog.String("endpoint", cfg.MinIOEndpoint),
			slog.String("bucket", cfg.MinIOBucket),
		)
		return store, nil

	default:
		store, err := storage.NewLocalStorage(storage.LocalConfig{
			TempDir: cfg.TempDir,
			RootDir: cfg.BlobDir,
			BaseURL: cfg.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("create local storage: %w", err)
		}
		logger.Info("local storage configured",
			slog.String("temp_dir", cfg.TempDir),
		)
		return store, nil
	}
}

// initProviders creates the remote generation clients. The transcriber is
// nil when transcription is disabled, so captions are always estimated.
func initProviders(cfg *config.Config, logger *slog.Logger) (provider.ImageGenerator, provider.SpeechSynthesizer, provider.Transcriber, error) {
	api, err := httpapi.NewClient(cfg.ProviderBaseURL,
		httpapi.WithAPIKey(cfg.ProviderAPIKey),
		httpapi.WithHTTPClient(&http.Client{Timeout: cfg.ProviderTimeout}),
		httpapi.WithMaxRetries(cfg.ProviderMaxRetries),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create generation API client: %w", err)
	}
	if cfg.ProviderAPIKey == "" {
		logger.Warn("PROVIDER_API_KEY is not set; generation calls will fail with missing credentials")
	}

	var transcriber provider.Transcriber
	if cfg.Transcription {
		transcriber = api
	}

	if cfg.ImageBackend != config.ImagesTaskQueue {
		return api, api, transcriber, nil
	}

	images, err := taskqueue.NewClient(cfg.ImageQueueURL,
		taskqueue.WithToken(cfg.ImageQueueToken),
		taskqueue.WithPollInterval(cfg.ImagePollEvery),
		taskqueue.WithMaxRetries(cfg.ProviderMaxRetries),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create image queue client: %w", err)
	}
	logger.Info("image task queue configured", slog.String("queue_url", cfg.ImageQueueURL))
	return images, api, transcriber, nil
}
