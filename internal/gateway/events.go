package gateway

import "time"

// Device event types.
const (
	// EventDeviceRegistered marks a device's first heartbeat.
	EventDeviceRegistered = "registered"

	// EventDeviceOnline marks a device crossing into the online state.
	EventDeviceOnline = "online"

	// EventDeviceOffline marks a device's heartbeat going stale.
	EventDeviceOffline = "offline"
)

// Access event types.
const (
	// EventAccessDecision carries the outcome of one scan.
	EventAccessDecision = "decision"

	// EventAccessUnlock marks a delayed unlock command going out.
	EventAccessUnlock = "unlock"
)

// DeviceEvent is published on the device events topic.
type DeviceEvent struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Device    string `json:"device"`
	Hostname  string `json:"hostname,omitempty"`
	IP        string `json:"ip,omitempty"`
	NumLocks  int    `json:"num_locks,omitempty"`
	Timestamp string `json:"timestamp"`
}

// AccessEvent is published on the access events topic.
type AccessEvent struct {
	EventID  string `json:"event_id"`
	Type     string `json:"type"`
	UID      string `json:"uid"`
	Door     string `json:"door,omitempty"`
	Unit     string `json:"unit,omitempty"`
	Known    bool   `json:"known"`
	Username string `json:"username,omitempty"`

	// Decision is the binary "allowed" or "denied"; Outcome carries
	// the specific refusal reason or "granted".
	Decision string `json:"decision,omitempty"`
	Outcome  string `json:"outcome,omitempty"`

	FireAt    string `json:"fire_at,omitempty"`
	Timestamp string `json:"timestamp"`
}

// eventTime formats event timestamps consistently.
func eventTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
