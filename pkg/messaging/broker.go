package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channel names for access request lifecycle events.
const (
	ChannelAccessRequests = "exchange.access_requests"
	ChannelAudit          = "exchange.audit"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
