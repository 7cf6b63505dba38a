package worker

import (
	"context"
	"time"

	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/pkg/logger"
)

// OutboxCleanupWorker trims processed index-sync events older than the
// retention window.
type OutboxCleanupWorker struct {
	repo          repository.OutboxRepository
	retentionDays int
	interval      time.Duration
	logger        *logger.Logger
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retentionDays int, interval time.Duration, logger *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:          repo,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
			deleted, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
			if err != nil {
				w.logger.Error(err, "Failed to clean up processed outbox events")
				continue
			}
			if deleted > 0 {
				w.logger.Info("Cleaned up processed outbox events", "deleted", deleted)
			}
		}
	}
}
