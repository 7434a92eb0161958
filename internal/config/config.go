// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrProviderURLRequired is returned when PROVIDER_BASE_URL is not set.
	ErrProviderURLRequired = errors.New("config: PROVIDER_BASE_URL is required")
	// ErrInvalidDBDriver is returned for a DB_DRIVER other than sqlite or mysql.
	ErrInvalidDBDriver = errors.New("config: DB_DRIVER must be sqlite or mysql")
	// ErrDSNRequired is returned when DB_DRIVER=mysql has no DB_DSN.
	ErrDSNRequired = errors.New("config: DB_DSN is required for mysql")
	// ErrInvalidBlobBackend is returned for an unknown BLOB_BACKEND.
	ErrInvalidBlobBackend = errors.New("config: BLOB_BACKEND must be local, s3 or minio")
	// ErrS3Incomplete is returned when BLOB_BACKEND=s3 lacks bucket or region.
	ErrS3Incomplete = errors.New("config: S3_BUCKET and S3_REGION are required for s3")
	// ErrMinIOIncomplete is returned when BLOB_BACKEND=minio lacks endpoint or bucket.
	ErrMinIOIncomplete = errors.New("config: MINIO_ENDPOINT and MINIO_BUCKET are required for minio")
	// ErrInvalidImageBackend is returned for an unknown IMAGE_BACKEND.
	ErrInvalidImageBackend = errors.New("config: IMAGE_BACKEND must be http or taskqueue")
	// ErrImageQueueURLRequired is returned when IMAGE_BACKEND=taskqueue has no IMAGE_QUEUE_URL.
	ErrImageQueueURLRequired = errors.New("config: IMAGE_QUEUE_URL is required for taskqueue")
	// ErrInvalidConcurrency is returned for non-positive concurrency settings.
	ErrInvalidConcurrency = errors.New("config: concurrency settings must be positive")
	// ErrInvalidCaptionRate is returned for a non-positive CAPTION_WPM.
	ErrInvalidCaptionRate = errors.New("config: CAPTION_WPM must be positive")
)

// Backend names.
const (
	DBDriverSQLite = "sqlite"
	DBDriverMySQL  = "mysql"

	BlobLocal = "local"
	BlobS3    = "s3"
	BlobMinIO = "minio"

	ImagesHTTP      = "http"
	ImagesTaskQueue = "taskqueue"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Record store
	DBDriver string `env:"DB_DRIVER, default=sqlite" json:"db_driver"`
	DBDSN    string `env:"DB_DSN, default=shortreel.db" json:"-"` // May carry a password

	// Blob store
	BlobBackend   string `env:"BLOB_BACKEND, default=local" json:"blob_backend"`
	TempDir       string `env:"TEMP_DIR, default=/tmp/shortreel" json:"temp_dir"`
	BlobDir       string `env:"BLOB_DIR" json:"blob_dir,omitempty"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" json:"public_base_url,omitempty"`

	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	MinIOEndpoint  string `env:"MINIO_ENDPOINT" json:"minio_endpoint,omitempty"`
	MinIOBucket    string `env:"MINIO_BUCKET" json:"minio_bucket,omitempty"`
	MinIORegion    string `env:"MINIO_REGION" json:"minio_region,omitempty"`
	MinIOAccessKey string `env:"MINIO_ACCESS_KEY" json:"-"` // Masked in JSON
	MinIOSecretKey string `env:"MINIO_SECRET_KEY" json:"-"` // Masked in JSON
	MinIOUseSSL    bool   `env:"MINIO_USE_SSL, default=false" json:"minio_use_ssl"`

	// Remote generation services
	ProviderBaseURL    string        `env:"PROVIDER_BASE_URL, required" json:"provider_base_url"`
	ProviderAPIKey     string        `env:"PROVIDER_API_KEY" json:"-"` // Checked per call, not at startup
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT, default=60s" json:"provider_timeout"`
	ProviderMaxRetries int           `env:"PROVIDER_MAX_RETRIES, default=3" json:"provider_max_retries"`
	Transcription      bool          `env:"TRANSCRIPTION_ENABLED, default=true" json:"transcription_enabled"`

	ImageBackend    string        `env:"IMAGE_BACKEND, default=http" json:"image_backend"`
	ImageQueueURL   string        `env:"IMAGE_QUEUE_URL" json:"image_queue_url,omitempty"`
	ImageQueueToken string        `env:"IMAGE_QUEUE_TOKEN" json:"-"` // Masked in JSON
	ImagePollEvery  time.Duration `env:"IMAGE_POLL_INTERVAL, default=2s" json:"image_poll_interval"`

	// Processing settings
	MaxConcurrentImages int    `env:"MAX_CONCURRENT_IMAGES, default=4" json:"max_concurrent_images"`
	CaptionWPM          int    `env:"CAPTION_WPM, default=160" json:"caption_wpm"`
	FFmpegPath          string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Background work
	RedisAddr         string        `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword     string        `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB           int           `env:"REDIS_DB, default=0" json:"redis_db"`
	RunWorker         bool          `env:"RUN_WORKER, default=false" json:"run_worker"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY, default=2" json:"worker_concurrency"`
	QueueName         string        `env:"QUEUE_NAME, default=default" json:"queue_name"`
	AssetsTimeout     time.Duration `env:"ASSETS_TIMEOUT, default=15m" json:"assets_timeout"`
	RenderTimeout     time.Duration `env:"RENDER_TIMEOUT, default=20m" json:"render_timeout"`

	// Progress stream
	ProgressPollInterval time.Duration `env:"PROGRESS_POLL_INTERVAL, default=1s" json:"progress_poll_interval"`
	ProgressInitGrace    time.Duration `env:"PROGRESS_INIT_GRACE, default=30s" json:"progress_init_grace"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// QueueEnabled returns true if a Redis address for background work is set.
func (c *Config) QueueEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: lookuper}); err != nil {
		if strings.Contains(err.Error(), "PROVIDER_BASE_URL") {
			return nil, ErrProviderURLRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.ProviderBaseURL == "" {
		return ErrProviderURLRequired
	}

	switch c.DBDriver {
	case DBDriverSQLite:
	case DBDriverMySQL:
		if c.DBDSN == "" {
			return ErrDSNRequired
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidDBDriver, c.DBDriver)
	}

	switch c.BlobBackend {
	case BlobLocal:
	case BlobS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			return ErrS3Incomplete
		}
	case BlobMinIO:
		if c.MinIOEndpoint == "" || c.MinIOBucket == "" {
			return ErrMinIOIncomplete
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidBlobBackend, c.BlobBackend)
	}

	switch c.ImageBackend {
	case ImagesHTTP:
	case ImagesTaskQueue:
		if c.ImageQueueURL == "" {
			return ErrImageQueueURLRequired
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidImageBackend, c.ImageBackend)
	}

	if c.MaxConcurrentImages <= 0 || c.WorkerConcurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.CaptionWPM <= 0 {
		return ErrInvalidCaptionRate
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, DBDriver: %s, BlobBackend: %s, TempDir: %s, ProviderBaseURL: %s, ProviderAPIKey: %s, ImageBackend: %s, MaxConcurrentImages: %d, CaptionWPM: %d, RedisAddr: %s, RunWorker: %t, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.DBDriver,
		c.BlobBackend,
		c.TempDir,
		c.ProviderBaseURL,
		mask(c.ProviderAPIKey),
		c.ImageBackend,
		c.MaxConcurrentImages,
		c.CaptionWPM,
		c.RedisAddr,
		c.RunWorker,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
