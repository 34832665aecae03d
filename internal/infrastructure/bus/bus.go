package bus

import "context"

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the transport.
// They should not block for extended periods.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload (typically JSON)
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Bus is the transport the gateway talks to controllers over.
//
// Two implementations exist: Client for an external MQTT broker and
// Embedded for the in-process broker. Gateway code depends only on
// this interface; broker selection happens once in main.
type Bus interface {
	// Publish sends a message to the specified topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for messages on the specified topic.
	// Topics can include MQTT wildcards (+ and #).
	Subscribe(topic string, qos byte, handler MessageHandler) error

	// Unsubscribe removes a subscription.
	Unsubscribe(topic string) error

	// IsConnected reports the last known connection state.
	IsConnected() bool

	// HealthCheck verifies the bus is alive and functioning.
	HealthCheck(ctx context.Context) error

	// Close shuts the bus down gracefully.
	Close() error
}

// Both broker variants satisfy Bus.
var (
	_ Bus = (*Client)(nil)
	_ Bus = (*Embedded)(nil)
)
