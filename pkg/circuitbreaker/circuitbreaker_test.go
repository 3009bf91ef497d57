package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/messaging"
)

type failingBroker struct {
	calls int
	err   error
}

func (b *failingBroker) Publish(ctx context.Context, channel string, message messaging.Message) error {
	b.calls++
	return b.err
}

func (b *failingBroker) Close() error { return nil }

func TestBrokerOpensAfterConsecutiveFailures(t *testing.T) {
	next := &failingBroker{err: errors.New("connection refused")}
	b := NewBroker(next, Settings{
		Name:             "test",
		MaxRequests:      1,
		Timeout:          time.Hour,
		FailureThreshold: 2,
	}, logger.Nop())

	msg := messaging.Message{ID: "1", Type: "patient.create"}
	require.Error(t, b.Publish(context.Background(), messaging.EventsChannel, msg))
	require.Error(t, b.Publish(context.Background(), messaging.EventsChannel, msg))
	assert.Equal(t, "open", b.State())

	err := b.Publish(context.Background(), messaging.EventsChannel, msg)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBrokerPassesThroughWhenHealthy(t *testing.T) {
	next := &failingBroker{}
	b := NewBroker(next, DefaultSettings("test"), logger.Nop())

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Publish(context.Background(), messaging.EventsChannel, messaging.Message{}))
	}
	assert.Equal(t, 10, next.calls)
	assert.Equal(t, "closed", b.State())
}
