// Package influxdb records gateway telemetry to InfluxDB v2.
//
// Heartbeats, device availability transitions and access decisions are
// written as time-series points so operators can chart controller
// uptime and usage patterns. Writes are batched and non-blocking; a
// failed write never slows the message handling path.
//
// Telemetry is optional. When disabled in configuration Connect
// returns ErrDisabled and the gateway simply skips the sink.
package influxdb
