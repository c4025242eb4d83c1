package domain

import (
	"context"
)

// EventBus carries receipt submissions in and scoring outcomes out.
// Delivery is at-most-once for both implementations.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers handler for topic until the returned
	// subscription is cancelled or the bus is closed.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes one delivered message. A returned error is
// logged by the bus; the message is not redelivered.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope every payload travels in.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is an active registration on a topic.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the bus implementation.
type EventBusConfig struct {
	// Type is "channel" (in-process) or "nats".
	Type string `envconfig:"TYPE" default:"channel"`

	ChannelBufferSize int `envconfig:"CHANNEL_BUFFER_SIZE" default:"1000"`

	NATSUrl           string `envconfig:"NATS_URL"`
	NATSToken         string `envconfig:"NATS_TOKEN"`
	NATSMaxReconnects int    `envconfig:"NATS_MAX_RECONNECTS" default:"10"`
	NATSReconnectWait int    `envconfig:"NATS_RECONNECT_WAIT" default:"5"` // seconds

	// NATSQueueGroup load-balances receipts.submitted across service
	// instances. Outcome topics always fan out to every subscriber.
	NATSQueueGroup string `envconfig:"NATS_QUEUE_GROUP" default:"receipts-workers"`
}

// Topics of the receipt pipeline. Submissions are work items; the other
// two are notifications.
const (
	TopicReceiptSubmitted = "receipts.submitted"
	TopicReceiptProcessed = "receipts.processed"
	TopicReceiptRejected  = "receipts.rejected"
)
