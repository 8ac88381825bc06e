package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/exchange-api/internal/service/accessrequest"
	"github.com/jwalitptl/exchange-api/pkg/logger"
)

// RequestExpiryWorker sweeps overdue pending access requests in the
// background. Lazy expiry on read already keeps results correct; the sweep
// just bounds how long an abandoned request stays visibly pending.
type RequestExpiryWorker struct {
	service   *accessrequest.Service
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
}

func NewRequestExpiryWorker(service *accessrequest.Service, interval time.Duration, batchSize int, log *logger.Logger) *RequestExpiryWorker {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &RequestExpiryWorker{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		logger:    log.With("request-expiry"),
	}
}

func (w *RequestExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting request expiry worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down request expiry worker")
			return
		case <-ticker.C:
			expired, err := w.service.ExpireOverdue(ctx, w.batchSize)
			if err != nil {
				w.logger.Error(err, "Failed to sweep overdue requests")
				continue
			}
			if expired > 0 {
				w.logger.Info("Expired overdue requests", "count", expired)
			}
		}
	}
}
