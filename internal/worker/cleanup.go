package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/internal/service/audit"
	"github.com/jwalitptl/exchange-api/pkg/logger"
)

// CleanupWorker prunes audit events past their retention window and outbox
// rows that were already relayed.
type CleanupWorker struct {
	audits        *audit.Service
	outbox        repository.OutboxRepository
	retentionDays int
	interval      time.Duration
	logger        *logger.Logger
}

func NewCleanupWorker(audits *audit.Service, outbox repository.OutboxRepository, retentionDays int, interval time.Duration, log *logger.Logger) *CleanupWorker {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &CleanupWorker{
		audits:        audits,
		outbox:        outbox,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        log.With("cleanup"),
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *CleanupWorker) run(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	if rows, err := w.audits.Cleanup(ctx, cutoff); err != nil {
		w.logger.Error(err, "Failed to prune audit events")
	} else if rows > 0 {
		w.logger.Info("Pruned audit events", "count", rows)
	}

	// Relayed outbox rows only need to outlive debugging sessions.
	if rows, err := w.outbox.DeleteProcessedBefore(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		w.logger.Error(err, "Failed to prune outbox")
	} else if rows > 0 {
		w.logger.Info("Pruned processed outbox events", "count", rows)
	}
}
