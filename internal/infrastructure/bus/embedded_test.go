package bus

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// collect subscribes and gathers received messages for assertions.
type collector struct {
	mu       sync.Mutex
	messages []embeddedMessage
	notify   chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, embeddedBuffer)}
}

func (c *collector) handler(topic string, payload []byte) error {
	c.mu.Lock()
	c.messages = append(c.messages, embeddedMessage{topic: topic, payload: payload})
	c.mu.Unlock()
	c.notify <- struct{}{}
	return nil
}

// wait blocks until n messages have arrived or the deadline passes.
func (c *collector) wait(t *testing.T, n int) []embeddedMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.messages) >= n {
			out := make([]embeddedMessage, len(c.messages))
			copy(out, c.messages)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d messages", n)
		}
	}
}

func TestEmbedded_PublishSubscribe(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	col := newCollector()
	if err := e.Subscribe("lockers/send", 1, col.handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := e.Publish("lockers/send", []byte(`{"type":"heartbeat"}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := col.wait(t, 1)
	if msgs[0].topic != "lockers/send" {
		t.Errorf("topic = %q, want lockers/send", msgs[0].topic)
	}
	if string(msgs[0].payload) != `{"type":"heartbeat"}` {
		t.Errorf("payload = %q", msgs[0].payload)
	}
}

func TestEmbedded_WildcardRouting(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	col := newCollector()
	if err := e.Subscribe("lockers/cmnd/+", 1, col.handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := e.Publish("lockers/cmnd/F1", []byte("a"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := e.Publish("lockers/send", []byte("b"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := e.Publish("lockers/cmnd/F2", []byte("c"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := col.wait(t, 2)
	if len(msgs) != 2 {
		t.Fatalf("received %d messages, want 2", len(msgs))
	}
	if msgs[0].topic != "lockers/cmnd/F1" || msgs[1].topic != "lockers/cmnd/F2" {
		t.Errorf("topics = %q, %q; want lockers/cmnd/F1, lockers/cmnd/F2", msgs[0].topic, msgs[1].topic)
	}
}

func TestEmbedded_OrderPreserved(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	col := newCollector()
	if err := e.Subscribe("lockers/send", 1, col.handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	payloads := []string{"one", "two", "three", "four", "five"}
	for _, p := range payloads {
		if err := e.Publish("lockers/send", []byte(p), 1, false); err != nil {
			t.Fatalf("Publish(%q) error = %v", p, err)
		}
	}

	msgs := col.wait(t, len(payloads))
	for i, want := range payloads {
		if string(msgs[i].payload) != want {
			t.Errorf("messages[%d] = %q, want %q", i, msgs[i].payload, want)
		}
	}
}

func TestEmbedded_RetainedDeliveredOnSubscribe(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	if err := e.Publish("lockers/gateway/status", []byte(`{"status":"online"}`), 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	col := newCollector()
	if err := e.Subscribe("lockers/gateway/status", 1, col.handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	msgs := col.wait(t, 1)
	if string(msgs[0].payload) != `{"status":"online"}` {
		t.Errorf("retained payload = %q", msgs[0].payload)
	}
}

func TestEmbedded_HandlerPanicRecovered(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	col := newCollector()
	first := true
	handler := func(topic string, payload []byte) error {
		if first {
			first = false
			panic("boom")
		}
		return col.handler(topic, payload)
	}
	if err := e.Subscribe("lockers/send", 1, handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := e.Publish("lockers/send", []byte("panics"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := e.Publish("lockers/send", []byte("survives"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := col.wait(t, 1)
	if string(msgs[0].payload) != "survives" {
		t.Errorf("payload = %q, want survives", msgs[0].payload)
	}
}

func TestEmbedded_Unsubscribe(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	col := newCollector()
	if err := e.Subscribe("lockers/send", 1, col.handler); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := e.Unsubscribe("lockers/send"); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	if err := e.Publish("lockers/send", []byte("after"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.messages) != 0 {
		t.Errorf("received %d messages after unsubscribe, want 0", len(col.messages))
	}
}

func TestEmbedded_Close(t *testing.T) {
	e := NewEmbedded()

	if !e.IsConnected() {
		t.Error("IsConnected() = false before Close, want true")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if e.IsConnected() {
		t.Error("IsConnected() = true after Close, want false")
	}

	if err := e.Publish("lockers/send", []byte("x"), 1, false); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrClosed", err)
	}
	if err := e.Subscribe("lockers/send", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() after Close error = %v, want ErrClosed", err)
	}

	// Closing twice is fine.
	if err := e.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestEmbedded_ValidatesInput(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	if err := e.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := e.Publish("lockers/send", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() qos 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := e.Subscribe("lockers/send", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() nil handler error = %v, want ErrSubscribeFailed", err)
	}
}

func TestEmbedded_RetainedReplayBeyondBuffer(t *testing.T) {
	e := NewEmbedded()
	defer e.Close()

	for i := 0; i < embeddedBuffer+8; i++ {
		topic := fmt.Sprintf("lockers/retained/%d", i)
		if err := e.Publish(topic, []byte("x"), 1, true); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	// More retained messages match than the subscription buffer holds;
	// replay must not block the broker. The overflow is dropped.
	done := make(chan error, 1)
	go func() {
		done <- e.Subscribe("lockers/retained/#", 1, func(string, []byte) error { return nil })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe() blocked while replaying retained messages")
	}
}
