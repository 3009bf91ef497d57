package messaging

import (
	"context"
	"encoding/json"
)

// EventsChannel is where patient events are relayed.
const EventsChannel = "care.events"

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message Message) error
	Close() error
}

// Message is the envelope written to the broker for each relayed event.
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
