package queue

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
)

// ServerConfig sizes the asynq server.
type ServerConfig struct {
	Concurrency int
	Queue       string
}

// NewServer creates an asynq server that logs through logger.
func NewServer(redis asynq.RedisConnOpt, cfg ServerConfig, logger *slog.Logger) *asynq.Server {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "default"
	}
	return asynq.NewServer(redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      slogLogger{logger.With("component", "asynq")},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, t *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn("task failed",
				"task", t.Type(),
				"payload", string(t.Payload()),
				"retry", retried,
				"max_retry", maxRetry,
				"error", err,
			)
		}),
	})
}

// slogLogger adapts slog to asynq.Logger.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(args ...any) { s.l.Debug(fmt.Sprint(args...)) }
func (s slogLogger) Info(args ...any)  { s.l.Info(fmt.Sprint(args...)) }
func (s slogLogger) Warn(args ...any)  { s.l.Warn(fmt.Sprint(args...)) }
func (s slogLogger) Error(args ...any) { s.l.Error(fmt.Sprint(args...)) }

// Fatal exits the process, as asynq.Logger requires.
func (s slogLogger) Fatal(args ...any) {
	s.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
