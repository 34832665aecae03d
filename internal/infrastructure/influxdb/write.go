package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteHeartbeat records one controller heartbeat as a time-series point.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceName: Device identifier (e.g., "F1")
//   - ip: Controller IP address at heartbeat time
//   - uptimeSeconds: Controller-reported uptime
//   - numLocks: Number of lock units the controller manages
//   - observedAt: When the heartbeat was observed
func (c *Client) WriteHeartbeat(deviceName, ip string, uptimeSeconds int64, numLocks int, observedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"heartbeat",
		map[string]string{
			"device": deviceName,
		},
		map[string]interface{}{
			"uptime_seconds": uptimeSeconds,
			"num_locks":      numLocks,
			"ip":             ip,
		},
		observedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WriteTransition records a device crossing the online/offline boundary.
//
// Charting this measurement gives controller availability over time.
func (c *Client) WriteTransition(deviceName string, online bool, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"availability",
		map[string]string{
			"device": deviceName,
		},
		map[string]interface{}{
			"online": online,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteAccessDecision records the outcome of one access event.
//
// The decision tag carries "granted", "denied", "unknown_tag" or
// "maintenance"; tag cardinality stays low while UID goes in a field.
func (c *Client) WriteAccessDecision(door, decision, uid string, observedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"access",
		map[string]string{
			"door":     door,
			"decision": decision,
		},
		map[string]interface{}{
			"uid":   uid,
			"count": 1,
		},
		observedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
