package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partaj/referral-api/internal/model"
	"github.com/partaj/referral-api/internal/repository"
	"github.com/partaj/referral-api/internal/repository/memory"
	"github.com/partaj/referral-api/pkg/logger"
	"github.com/partaj/referral-api/pkg/messaging"
	"github.com/partaj/referral-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("test", "worker")

type fakeBroker struct {
	published []messaging.Message
	err       error
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, message.(messaging.Message))
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

func newProcessor(t *testing.T, broker messaging.Broker, attempts int, retryDelay time.Duration) (*OutboxProcessor, repository.OutboxRepository) {
	t.Helper()
	repo := memory.NewStore().Repos().Outbox
	log := logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
	p := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: attempts,
		RetryDelay:    retryDelay,
	}, log, testMetrics)
	return p, repo
}

func enqueue(t *testing.T, repo repository.OutboxRepository, eventType string) *model.OutboxEvent {
	t.Helper()
	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   json.RawMessage(`{"id":"r-1"}`),
	}
	require.NoError(t, repo.Create(context.Background(), event))
	return event
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	broker := &fakeBroker{}
	p, repo := newProcessor(t, broker, 3, time.Minute)
	ctx := context.Background()

	enqueue(t, repo, model.IndexEventReferralUpserted)
	enqueue(t, repo, model.IndexEventUnitUpserted)

	require.NoError(t, p.processEvents(ctx))

	require.Len(t, broker.published, 2)
	assert.Equal(t, model.IndexEventReferralUpserted, broker.published[0].Type)
	assert.Equal(t, json.RawMessage(`{"id":"r-1"}`), broker.published[0].Payload)

	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestProcessEventsRetriesThenFails(t *testing.T) {
	broker := &fakeBroker{err: errors.New("redis unavailable")}
	p, repo := newProcessor(t, broker, 2, time.Millisecond)
	ctx := context.Background()

	enqueue(t, repo, model.IndexEventReferralUpserted)

	// First attempt schedules a retry, the event stays pending.
	require.NoError(t, p.processEvents(ctx))
	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	time.Sleep(5 * time.Millisecond)

	// Second attempt exhausts the budget and parks the event as FAILED.
	require.NoError(t, p.processEvents(ctx))
	count, err = repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	events, err := repo.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, broker.published)
}

func TestProcessEventsRespectsRetryDelay(t *testing.T) {
	broker := &fakeBroker{err: errors.New("redis unavailable")}
	p, repo := newProcessor(t, broker, 3, time.Hour)
	ctx := context.Background()

	enqueue(t, repo, model.IndexEventReferralUpserted)
	require.NoError(t, p.processEvents(ctx))

	// The event is backing off, so a publish that would now succeed is not
	// attempted until the retry time passes.
	broker.err = nil
	require.NoError(t, p.processEvents(ctx))
	assert.Empty(t, broker.published)
}

func TestDeleteProcessedBefore(t *testing.T) {
	broker := &fakeBroker{}
	p, repo := newProcessor(t, broker, 3, time.Minute)
	ctx := context.Background()

	enqueue(t, repo, model.IndexEventReferralUpserted)
	require.NoError(t, p.processEvents(ctx))

	deleted, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
