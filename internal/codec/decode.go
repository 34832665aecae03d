package codec

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the sealed set of decoded inbound messages.
// Callers type-switch on the concrete type to route.
type Message interface {
	inbound()
}

// Heartbeat is a periodic liveness/report message from a controller.
// One heartbeat represents NumLocks physical units named
// "<DeviceName>A", "<DeviceName>B", ... in order.
type Heartbeat struct {
	// Hostname is the raw wire name, e.g. "F1-2".
	Hostname string

	// DeviceName is the parsed prefix, e.g. "F1".
	DeviceName string

	IP             string
	ControllerType string
	NumLocks       int
	UptimeSeconds  int64
	ObservedAt     time.Time
}

func (*Heartbeat) inbound() {}

// UnitIDs returns the ordered unit identifiers this heartbeat fans out to.
func (h *Heartbeat) UnitIDs() []string {
	return UnitIDs(h.DeviceName, h.NumLocks)
}

// AccessLog is an RFID scan report from a controller.
type AccessLog struct {
	UID        string
	Door       string
	Known      bool
	Access     string
	Username   string
	ObservedAt time.Time
}

func (*AccessLog) inbound() {}

// Ack is a generic acknowledgement or sync report from a controller.
// Acks are informational; the gateway logs them and takes no action.
type Ack struct {
	Cmd    string
	DoorIP string
	Lock   int
	UID    string
}

func (*Ack) inbound() {}

// envelope peeks at the discriminating fields of an inbound payload.
type envelope struct {
	Type string `json:"type"`
	Cmd  string `json:"cmd"`
}

// Decode parses an inbound payload into its typed message.
//
// The payload shape is discriminated by the type/cmd fields:
//   - type == "heartbeat"              → *Heartbeat
//   - cmd == "log" && type == "access" → *AccessLog
//   - any other non-empty cmd          → *Ack
//
// Decoding fails closed: missing required fields yield ErrMalformedMessage,
// and a hostname/numlocks disagreement yields ErrProtocolViolation.
func Decode(payload []byte, receivedAt time.Time) (Message, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedMessage)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case env.Type == "heartbeat":
		return decodeHeartbeat(payload, receivedAt)
	case env.Cmd == "log" && env.Type == "access":
		return decodeAccessLog(payload, receivedAt)
	case env.Cmd != "":
		return decodeAck(payload)
	default:
		return nil, fmt.Errorf("%w: unrecognised message shape", ErrMalformedMessage)
	}
}

type heartbeatWire struct {
	Hostname       string `json:"hostname"`
	IP             string `json:"ip"`
	ControllerType string `json:"controllertype"`
	NumLocks       *int   `json:"numlocks"`
	Uptime         int64  `json:"uptime"`
	Time           any    `json:"time"`
}

func decodeHeartbeat(payload []byte, receivedAt time.Time) (*Heartbeat, error) {
	var wire heartbeatWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: heartbeat: %v", ErrMalformedMessage, err)
	}

	switch {
	case wire.Hostname == "":
		return nil, fmt.Errorf("%w: heartbeat missing hostname", ErrMalformedMessage)
	case wire.IP == "":
		return nil, fmt.Errorf("%w: heartbeat missing ip", ErrMalformedMessage)
	case wire.NumLocks == nil:
		return nil, fmt.Errorf("%w: heartbeat missing numlocks", ErrMalformedMessage)
	}

	name, suffixLocks, err := ParseHostname(wire.Hostname)
	if err != nil {
		return nil, err
	}
	if suffixLocks != *wire.NumLocks {
		return nil, fmt.Errorf("%w: hostname %q encodes %d units but numlocks is %d",
			ErrProtocolViolation, wire.Hostname, suffixLocks, *wire.NumLocks)
	}

	return &Heartbeat{
		Hostname:       wire.Hostname,
		DeviceName:     name,
		IP:             wire.IP,
		ControllerType: wire.ControllerType,
		NumLocks:       *wire.NumLocks,
		UptimeSeconds:  wire.Uptime,
		ObservedAt:     parseTimestamp(wire.Time, receivedAt),
	}, nil
}

type accessLogWire struct {
	Time     any    `json:"time"`
	IsKnown  string `json:"isKnown"`
	Access   string `json:"access"`
	Username string `json:"username"`
	UID      string `json:"uid"`
	Door     string `json:"door"`
}

func decodeAccessLog(payload []byte, receivedAt time.Time) (*AccessLog, error) {
	var wire accessLogWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: access log: %v", ErrMalformedMessage, err)
	}

	switch {
	case wire.UID == "":
		return nil, fmt.Errorf("%w: access log missing uid", ErrMalformedMessage)
	case wire.Door == "":
		return nil, fmt.Errorf("%w: access log missing door", ErrMalformedMessage)
	case wire.IsKnown != "true" && wire.IsKnown != "false":
		return nil, fmt.Errorf("%w: access log isKnown must be \"true\" or \"false\", got %q", ErrMalformedMessage, wire.IsKnown)
	}

	return &AccessLog{
		UID:        wire.UID,
		Door:       wire.Door,
		Known:      wire.IsKnown == "true",
		Access:     wire.Access,
		Username:   wire.Username,
		ObservedAt: parseTimestamp(wire.Time, receivedAt),
	}, nil
}

type ackWire struct {
	Cmd    string `json:"cmd"`
	DoorIP string `json:"doorip"`
	Lock   int    `json:"lock"`
	UID    string `json:"uid"`
}

func decodeAck(payload []byte) (*Ack, error) {
	var wire ackWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: ack: %v", ErrMalformedMessage, err)
	}

	return &Ack{
		Cmd:    wire.Cmd,
		DoorIP: wire.DoorIP,
		Lock:   wire.Lock,
		UID:    wire.UID,
	}, nil
}

// parseTimestamp interprets a wire time field.
//
// Controllers in the field report either unix seconds (number) or RFC3339
// strings; anything else falls back to the gateway's receipt time.
func parseTimestamp(v any, fallback time.Time) time.Time {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return time.Unix(int64(t), 0).UTC()
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC()
		}
	}
	return fallback.UTC()
}
