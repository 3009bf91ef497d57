package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/messaging"
)

type Settings struct {
	Name string
	// MaxRequests is the number of trial publishes allowed while half-open.
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Broker guards a messaging.Broker. While the breaker is open, Publish
// fails with gobreaker.ErrOpenState without reaching the broker.
type Broker struct {
	next messaging.Broker
	cb   *gobreaker.CircuitBreaker
}

func NewBroker(next messaging.Broker, settings Settings, log *logger.Logger) *Broker {
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Broker{next: next, cb: cb}
}

func (b *Broker) Publish(ctx context.Context, channel string, message messaging.Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publish(ctx, channel, message)
	})
	return err
}

func (b *Broker) Close() error {
	return b.next.Close()
}

// State reports "closed", "half-open" or "open".
func (b *Broker) State() string {
	return b.cb.State().String()
}
