package codec

import (
	"errors"
	"testing"
	"time"
)

var receivedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecode_Heartbeat(t *testing.T) {
	payload := []byte(`{"type":"heartbeat","hostname":"F1-2","ip":"10.0.0.7","controllertype":"esp32","numlocks":2,"uptime":3600,"time":1772366400}`)

	msg, err := Decode(payload, receivedAt)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	hb, ok := msg.(*Heartbeat)
	if !ok {
		t.Fatalf("Decode() returned %T, want *Heartbeat", msg)
	}

	if hb.Hostname != "F1-2" {
		t.Errorf("Hostname = %q, want F1-2", hb.Hostname)
	}
	if hb.DeviceName != "F1" {
		t.Errorf("DeviceName = %q, want F1", hb.DeviceName)
	}
	if hb.NumLocks != 2 {
		t.Errorf("NumLocks = %d, want 2", hb.NumLocks)
	}
	if hb.UptimeSeconds != 3600 {
		t.Errorf("UptimeSeconds = %d, want 3600", hb.UptimeSeconds)
	}
	if got := hb.ObservedAt.Unix(); got != 1772366400 {
		t.Errorf("ObservedAt.Unix() = %d, want 1772366400", got)
	}

	units := hb.UnitIDs()
	want := []string{"F1A", "F1B"}
	if len(units) != len(want) {
		t.Fatalf("UnitIDs() = %v, want %v", units, want)
	}
	for i := range want {
		if units[i] != want[i] {
			t.Errorf("UnitIDs()[%d] = %q, want %q", i, units[i], want[i])
		}
	}
}

func TestDecode_HeartbeatNumLocksMismatch(t *testing.T) {
	payload := []byte(`{"type":"heartbeat","hostname":"F1-2","ip":"10.0.0.7","controllertype":"esp32","numlocks":3,"uptime":1}`)

	_, err := Decode(payload, receivedAt)
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Decode() error = %v, want ErrProtocolViolation", err)
	}
}

func TestDecode_HeartbeatMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing hostname", payload: `{"type":"heartbeat","ip":"10.0.0.7","numlocks":2}`},
		{name: "missing ip", payload: `{"type":"heartbeat","hostname":"F1-2","numlocks":2}`},
		{name: "missing numlocks", payload: `{"type":"heartbeat","hostname":"F1-2","ip":"10.0.0.7"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), receivedAt)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Decode() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecode_AccessLog(t *testing.T) {
	payload := []byte(`{"cmd":"log","type":"access","time":1772366400,"isKnown":"true","access":"Always","username":"ada","uid":"04AA11","door":"F1A"}`)

	msg, err := Decode(payload, receivedAt)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	al, ok := msg.(*AccessLog)
	if !ok {
		t.Fatalf("Decode() returned %T, want *AccessLog", msg)
	}

	if !al.Known {
		t.Error("Known = false, want true")
	}
	if al.UID != "04AA11" {
		t.Errorf("UID = %q, want 04AA11", al.UID)
	}
	if al.Door != "F1A" {
		t.Errorf("Door = %q, want F1A", al.Door)
	}
	if al.Access != "Always" {
		t.Errorf("Access = %q, want Always", al.Access)
	}
	if al.Username != "ada" {
		t.Errorf("Username = %q, want ada", al.Username)
	}
}

func TestDecode_AccessLogUnknownTag(t *testing.T) {
	payload := []byte(`{"cmd":"log","type":"access","isKnown":"false","access":"","username":"","uid":"DEADBEEF","door":"F1A"}`)

	msg, err := Decode(payload, receivedAt)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if al := msg.(*AccessLog); al.Known {
		t.Error("Known = true, want false")
	}
}

func TestDecode_AccessLogMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing uid", payload: `{"cmd":"log","type":"access","isKnown":"true","door":"F1A"}`},
		{name: "missing door", payload: `{"cmd":"log","type":"access","isKnown":"true","uid":"04AA11"}`},
		{name: "bad isKnown", payload: `{"cmd":"log","type":"access","isKnown":"yes","uid":"04AA11","door":"F1A"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), receivedAt)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Decode() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecode_Ack(t *testing.T) {
	payload := []byte(`{"cmd":"sync","doorip":"10.0.0.7","lock":1,"uid":"04AA11"}`)

	msg, err := Decode(payload, receivedAt)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	ack, ok := msg.(*Ack)
	if !ok {
		t.Fatalf("Decode() returned %T, want *Ack", msg)
	}
	if ack.Cmd != "sync" {
		t.Errorf("Cmd = %q, want sync", ack.Cmd)
	}
	if ack.Lock != 1 {
		t.Errorf("Lock = %d, want 1", ack.Lock)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: ""},
		{name: "not json", payload: "not json"},
		{name: "no discriminator", payload: `{"hello":"world"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), receivedAt)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Decode() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	fallback := receivedAt

	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{name: "unix seconds", value: float64(1772366400), want: time.Unix(1772366400, 0).UTC()},
		{name: "rfc3339", value: "2026-03-01T10:30:00Z", want: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)},
		{name: "garbage string", value: "yesterday", want: fallback},
		{name: "nil", value: nil, want: fallback},
		{name: "zero number", value: float64(0), want: fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTimestamp(tt.value, fallback); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
