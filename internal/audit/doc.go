// Package audit persists the gateway's event trail to SQLite.
//
// Two append-only tables are kept: access_events records every access
// decision (granted, denied, unknown tag, maintenance refusal) and
// device_transitions records devices crossing the online/offline
// boundary. The trail survives restarts and is the ground truth when
// the broker-side event topics have long scrolled away.
//
// Writes happen on the gateway's message handling path, so failures
// are reported to the caller for logging but never block or abort
// message processing.
package audit
