package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// embeddedBuffer is the per-subscription delivery buffer size.
const embeddedBuffer = 256

// Embedded is the in-process broker for single-binary deployments.
//
// It implements Bus without any external broker: publishes are routed
// directly to matching subscriptions. Each subscription gets its own
// bounded FIFO delivery queue drained by a dedicated goroutine, so a
// slow handler delays only its own subscription and per-subscription
// message order is preserved.
//
// Wildcard filters (+ and #) and retained messages behave as they
// would on a real MQTT broker. QoS levels are accepted and ignored;
// in-process delivery is already exactly-once.
type Embedded struct {
	mu       sync.RWMutex
	subs     map[string]*embeddedSub
	retained map[string][]byte
	closed   bool

	logger   Logger
	loggerMu sync.RWMutex
}

type embeddedSub struct {
	filter  string
	handler MessageHandler
	ch      chan embeddedMessage
	done    chan struct{}
}

type embeddedMessage struct {
	topic   string
	payload []byte
}

// NewEmbedded creates a started in-process broker.
func NewEmbedded() *Embedded {
	return &Embedded{
		subs:     make(map[string]*embeddedSub),
		retained: make(map[string][]byte),
	}
}

// Publish routes a message to every matching subscription.
//
// Delivery is asynchronous; each matching subscription receives the
// message through its own queue. A subscription whose queue is full
// has the message dropped for it with a warning logged.
func (e *Embedded) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if retained {
		if len(buf) == 0 {
			// Empty retained payload clears the retained message, per MQTT.
			delete(e.retained, topic)
		} else {
			e.retained[topic] = buf
		}
	}
	targets := make([]*embeddedSub, 0, len(e.subs))
	for _, sub := range e.subs {
		if topicMatches(sub.filter, topic) {
			targets = append(targets, sub)
		}
	}
	e.mu.Unlock()

	for _, sub := range targets {
		e.deliver(sub, embeddedMessage{topic: topic, payload: buf})
	}
	return nil
}

func (e *Embedded) deliver(sub *embeddedSub, msg embeddedMessage) {
	select {
	case sub.ch <- msg:
	default:
		if logger := e.getLogger(); logger != nil {
			logger.Warn("embedded broker dropped message, subscriber queue full",
				"topic", msg.topic,
				"filter", sub.filter,
			)
		}
	}
}

// Subscribe registers a handler for messages matching the topic filter.
//
// Retained messages matching the filter are delivered immediately, then
// live messages in publish order. Re-subscribing to the same filter
// replaces the previous handler.
func (e *Embedded) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	sub := &embeddedSub{
		filter:  topic,
		handler: handler,
		ch:      make(chan embeddedMessage, embeddedBuffer),
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if prev, ok := e.subs[topic]; ok {
		close(prev.done)
	}
	e.subs[topic] = sub
	for retTopic, payload := range e.retained {
		if topicMatches(topic, retTopic) {
			e.deliver(sub, embeddedMessage{topic: retTopic, payload: payload})
		}
	}
	e.mu.Unlock()

	go e.drain(sub)
	return nil
}

// drain delivers a subscription's messages in FIFO order until it is
// cancelled. Handler panics are recovered so one bad message cannot
// kill the delivery loop.
func (e *Embedded) drain(sub *embeddedSub) {
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.ch:
			e.invoke(sub, msg)
		}
	}
}

func (e *Embedded) invoke(sub *embeddedSub, msg embeddedMessage) {
	defer func() {
		if r := recover(); r != nil {
			if logger := e.getLogger(); logger != nil {
				logger.Error("bus handler panic recovered",
					"topic", msg.topic,
					"panic", r,
				)
			}
		}
	}()

	if err := sub.handler(msg.topic, msg.payload); err != nil {
		if logger := e.getLogger(); logger != nil {
			logger.Warn("bus handler returned error",
				"topic", msg.topic,
				"error", err,
			)
		}
	}
}

// Unsubscribe removes a subscription and stops its delivery goroutine.
func (e *Embedded) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if sub, ok := e.subs[topic]; ok {
		close(sub.done)
		delete(e.subs, topic)
	}
	return nil
}

// IsConnected reports whether the broker is accepting traffic.
func (e *Embedded) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// HealthCheck verifies the broker is alive.
func (e *Embedded) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("bus health check: %w", ctx.Err())
	default:
	}

	if !e.IsConnected() {
		return ErrClosed
	}
	return nil
}

// Close stops all subscriptions. Further operations return ErrClosed.
func (e *Embedded) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	for _, sub := range e.subs {
		close(sub.done)
	}
	e.subs = make(map[string]*embeddedSub)
	return nil
}

// SetLogger sets a logger for handler error and overflow logging.
func (e *Embedded) SetLogger(logger Logger) {
	e.loggerMu.Lock()
	e.logger = logger
	e.loggerMu.Unlock()
}

func (e *Embedded) getLogger() Logger {
	e.loggerMu.RLock()
	defer e.loggerMu.RUnlock()
	return e.logger
}

// topicMatches reports whether an MQTT topic filter matches a concrete
// topic. "+" matches exactly one level, "#" matches the remainder.
func topicMatches(filter, topic string) bool {
	if filter == topic {
		return true
	}

	fparts := strings.Split(filter, "/")
	tparts := strings.Split(topic, "/")

	for i, fp := range fparts {
		if fp == "#" {
			return true
		}
		if i >= len(tparts) {
			return false
		}
		if fp != "+" && fp != tparts[i] {
			return false
		}
	}
	return len(fparts) == len(tparts)
}
