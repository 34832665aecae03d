package bus

import "fmt"

// defaultBase is the first segment of every gateway topic.
const defaultBase = "lockers"

// Topics provides builders for the gateway's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// The zero value uses the default "lockers" base:
//
//	topics := bus.Topics{}
//	cmdTopic := topics.Command("F1")
//	// Returns: "lockers/cmnd/F1"
type Topics struct {
	// Base overrides the first topic segment. Empty means "lockers".
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return defaultBase
	}
	return t.Base
}

// Inbound returns the shared topic all controllers publish to.
// Heartbeats, access logs and acks arrive here.
//
// Example: lockers/send
func (t Topics) Inbound() string {
	return fmt.Sprintf("%s/send", t.base())
}

// Command returns the per-device topic the gateway addresses commands to.
// Controllers subscribe to their own command topic only.
//
// Example: lockers/cmnd/F1
func (t Topics) Command(deviceName string) string {
	return fmt.Sprintf("%s/cmnd/%s", t.base(), deviceName)
}

// DeviceEvents returns the topic for device lifecycle events
// (online/offline transitions, registrations).
//
// Example: lockers/events/device
func (t Topics) DeviceEvents() string {
	return fmt.Sprintf("%s/events/device", t.base())
}

// AccessEvents returns the topic for access decision events.
//
// Example: lockers/events/access
func (t Topics) AccessEvents() string {
	return fmt.Sprintf("%s/events/access", t.base())
}

// GatewayStatus returns the retained topic carrying the gateway's own
// online/offline status, including its LWT.
//
// Example: lockers/gateway/status
func (t Topics) GatewayStatus() string {
	return fmt.Sprintf("%s/gateway/status", t.base())
}
