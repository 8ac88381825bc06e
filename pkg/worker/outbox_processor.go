package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/exchange-api/internal/model"
	"github.com/jwalitptl/exchange-api/internal/repository"
	"github.com/jwalitptl/exchange-api/pkg/logger"
	"github.com/jwalitptl/exchange-api/pkg/messaging"
	"github.com/jwalitptl/exchange-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// OutboxProcessor relays access request lifecycle events from the outbox
// table to the broker. Delivery is at least once: an event is marked
// processed only after a successful publish, and one that keeps failing
// lands in the dead letter table after MaxRetries redeliveries.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 30 * time.Second
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  log,
		metrics: m,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		p.observeDB("get_pending_events", "error")
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	p.observeDB("get_pending_events", "success")

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := p.broker.Publish(ctx, channelFor(event.EventType), messaging.Message{
		Type:    event.EventType,
		Payload: event.Payload,
	})
	if err != nil {
		return p.handleFailure(ctx, event, err)
	}

	if p.metrics != nil {
		p.metrics.OutboxEventsProcessed.Inc()
	}
	if err := p.repo.UpdateStatusTx(ctx, nil, event.ID, model.OutboxStatusProcessed, nil, nil); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// handleFailure schedules a redelivery, or moves the event to the dead
// letter table once its retry budget is spent.
func (p *OutboxProcessor) handleFailure(ctx context.Context, event *model.OutboxEvent, pubErr error) error {
	if p.metrics != nil {
		p.metrics.OutboxEventsFailed.Inc()
	}

	if event.RetryCount+1 >= p.config.MaxRetries {
		tx, err := p.repo.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin dead letter tx: %w", err)
		}
		if err := p.repo.MoveToDeadLetter(ctx, tx, event); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to move event to dead letter: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit dead letter tx: %w", err)
		}
		p.logger.Error(pubErr, "Event moved to dead letter",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"retries", event.RetryCount)
		return nil
	}

	if p.metrics != nil {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	}
	errStr := pubErr.Error()
	retryAt := time.Now().Add(p.config.RetryDelay)
	if err := p.repo.UpdateStatusTx(ctx, nil, event.ID, model.OutboxStatusRetry, &errStr, &retryAt); err != nil {
		return fmt.Errorf("failed to schedule retry: %w", err)
	}
	return pubErr
}

func (p *OutboxProcessor) observeDB(operation, status string) {
	if p.metrics != nil {
		p.metrics.DatabaseOperations.WithLabelValues(operation, status).Inc()
	}
}

func channelFor(eventType string) string {
	if strings.HasPrefix(eventType, "access_request.") {
		return messaging.ChannelAccessRequests
	}
	return messaging.ChannelAudit
}
