// Package bus provides the message bus connecting the gateway to locker
// controllers.
//
// This package manages:
//   - Connection to an external MQTT broker with auto-reconnect
//   - An embedded in-process broker for single-binary deployments
//   - Message publishing with QoS guarantees and offline queueing
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for gateway offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Controllers publish heartbeats and access reports to a shared inbound
// topic; the gateway addresses commands to per-device topics. The Bus
// interface hides which broker variant is in use, so the gateway core is
// identical in both deployments:
//
//	Controllers ↔ MQTT Broker ↔ Lockgate
//
// Both Client (external broker) and Embedded (in-process broker)
// implement Bus. Publishes issued while the external broker is
// unreachable are held in a bounded queue and flushed on reconnect;
// once the queue is full further publishes fail with ErrQueueFull
// rather than being dropped silently.
//
// # Usage
//
//	b, err := bus.Connect(cfg.Broker)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	topics := bus.Topics{Base: cfg.Topics.Base}
//	err = b.Subscribe(topics.Inbound(), 1,
//	    func(topic string, payload []byte) error {
//	        return gateway.HandleInbound(topic, payload)
//	    })
package bus
