package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/pkg/logger"
	"github.com/partaj/referral-api/pkg/messaging"
	"github.com/partaj/referral-api/pkg/metrics"
)

// IndexChannel is the broker channel the search-index mirror listens on.
const IndexChannel = "referral.index"

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// OutboxProcessor drains pending index-sync events from the outbox and
// publishes them to the broker. Failed events are retried with a delay and
// marked FAILED once the attempts run out.
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
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting index-sync outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down index-sync outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process index events")
			}
		}
	}
}

func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.IndexProcessingLatency)
	defer timer.ObserveDuration()

	pending, err := p.repo.CountPending(ctx)
	if err == nil {
		p.metrics.IndexQueueSize.Set(float64(pending))
	}

	events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process index event",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	return nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	message := messaging.Message{Type: event.EventType, Payload: event.Payload}
	err := p.broker.Publish(ctx, IndexChannel, message)
	if err != nil {
		errStr := err.Error()
		if event.RetryCount+1 < p.config.RetryAttempts {
			p.metrics.IndexRetries.WithLabelValues(event.EventType).Inc()
			retryAt := time.Now().Add(p.config.RetryDelay)
			if retryErr := p.repo.IncrementRetry(ctx, event.ID, errStr, retryAt); retryErr != nil {
				p.logger.Error(retryErr, "Failed to schedule event retry")
			}
			return err
		}

		p.metrics.IndexEventsFailed.Inc()
		if updateErr := p.repo.UpdateStatus(ctx, event.ID, string(model.OutboxStatusFailed), &errStr, nil); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status")
		}
		return err
	}

	p.metrics.IndexEventsProcessed.Inc()
	now := time.Now()
	if err := p.repo.UpdateStatus(ctx, event.ID, string(model.OutboxStatusProcessed), nil, &now); err != nil {
		p.logger.Error(err, "Failed to update event status", "event_id", event.ID.String())
		return err
	}

	return nil
}
