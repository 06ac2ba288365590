package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/warelane/warelane/internal/jobs"
)

const defaultIdempotencyRetention = 7 * 24 * time.Hour

// IdempotencyCleaner prunes idempotency keys past their retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// CleanupHandler runs the idempotency key retention sweep.
type CleanupHandler struct {
	cleaner IdempotencyCleaner
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewCleanupHandler constructs the cleanup handler.
func NewCleanupHandler(cleaner IdempotencyCleaner, metrics *jobmetrics.Metrics, logger *slog.Logger) *CleanupHandler {
	return &CleanupHandler{cleaner: cleaner, metrics: metrics, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (c *CleanupHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	olderThan := payload.OlderThan
	if olderThan <= 0 {
		olderThan = defaultIdempotencyRetention
	}
	tracker := c.metrics.Track("idempotency_cleanup")
	err := c.cleaner.Cleanup(ctx, olderThan)
	if err != nil {
		c.logger.Error("idempotency cleanup failed", slog.Any("error", err))
	} else {
		c.logger.Info("idempotency cleanup done", slog.Duration("older_than", olderThan))
	}
	return tracker.End(err)
}
