// Package gateway wires the lockgate components into a running service.
//
// The Gateway subscribes to the shared inbound topic, decodes each
// controller message and routes it: heartbeats into the registry and
// telemetry, access logs through the evaluator and on to the
// dispatcher, acks into the log. Liveness transitions from the monitor
// and access decisions are published as JSON events and appended to
// the audit trail.
//
// The audit store and telemetry client are optional; a nil sink is
// skipped. Sink failures are logged and never interrupt message
// handling.
package gateway
