package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/internal/model"
	"github.com/jwalitptl/care-api/internal/repository/memory"
	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/messaging"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

type fakeBroker struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []messaging.Message
	channels []string
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message messaging.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.sent = append(b.sent, message)
	b.channels = append(b.channels, channel)
	return nil
}

func (b *fakeBroker) Close() error { return nil }

func newEvent(t *testing.T, repo *memory.OutboxRepository, eventType string) *model.OutboxEvent {
	t.Helper()
	e := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   json.RawMessage(`{"patient_id":"12345678901"}`),
	}
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func newProcessor(t *testing.T, repo *memory.OutboxRepository, broker messaging.Broker, attempts int) *OutboxProcessor {
	t.Helper()
	p, err := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		Channel:       messaging.EventsChannel,
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: attempts,
		RetryDelay:    0,
	}, logger.Nop(), metrics.New("test", nil))
	require.NoError(t, err)
	return p
}

func TestProcessBatchPublishesPendingEvents(t *testing.T) {
	repo := memory.NewOutboxRepository()
	broker := &fakeBroker{}
	e := newEvent(t, repo, "patient.assign_medicine")

	n, err := newProcessor(t, repo, broker, 3).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, broker.sent, 1)
	assert.Equal(t, messaging.EventsChannel, broker.channels[0])
	assert.Equal(t, e.ID.String(), broker.sent[0].ID)
	assert.Equal(t, "patient.assign_medicine", broker.sent[0].Type)
	assert.JSONEq(t, `{"patient_id":"12345678901"}`, string(broker.sent[0].Payload))

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
	assert.NotNil(t, events[0].ProcessedAt)
}

func TestProcessBatchRetriesWithinAttempts(t *testing.T) {
	repo := memory.NewOutboxRepository()
	broker := &fakeBroker{failures: 2}
	newEvent(t, repo, "patient.record_given")

	n, err := newProcessor(t, repo, broker, 3).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, broker.calls)
	assert.Equal(t, model.OutboxStatusProcessed, repo.Events()[0].Status)
}

func TestFailedEventsStopAfterRetryBudget(t *testing.T) {
	repo := memory.NewOutboxRepository()
	broker := &fakeBroker{failures: 100}
	newEvent(t, repo, "patient.delete_medicines")
	p := newProcessor(t, repo, broker, 2)

	for i := 0; i < 3; i++ {
		n, err := p.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].RetryCount)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Contains(t, *events[0].ErrorMessage, "broker unavailable")
	// two polls of two attempts each; the third poll finds nothing to retry
	assert.Equal(t, 4, broker.calls)
}

func TestNewOutboxProcessorRejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(memory.NewOutboxRepository(), &fakeBroker{}, OutboxProcessorConfig{
		Channel:      messaging.EventsChannel,
		BatchSize:    0,
		PollInterval: time.Second,
	}, logger.Nop(), metrics.New("test", nil))
	assert.ErrorContains(t, err, "batch size")
}

func TestOutboxCleanupRemovesOldProcessedEvents(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	done := newEvent(t, repo, "patient.create")
	pending := newEvent(t, repo, "patient.update")
	require.NoError(t, repo.UpdateStatus(ctx, done.ID, model.OutboxStatusProcessed, nil))

	w := NewOutboxCleanup(repo, time.Hour, time.Minute, logger.Nop(), metrics.New("test", nil))

	n, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, pending.ID, events[0].ID)
}
