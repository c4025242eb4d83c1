// Package bus provides event bus implementations for the receipt pipeline.
package bus

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/receipts/internal/domain"
)

// New creates a new event bus based on configuration.
// "channel" delivers in-process; "nats" fans out across nodes.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "", "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// newMessage builds the envelope shared by every bus implementation.
func newMessage(topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:      uuid.New().String(),
		Topic:   topic,
		Payload: payload,
		Metadata: map[string]string{
			"content-type": "application/json",
		},
		Timestamp: time.Now().UnixNano(),
	}
}
