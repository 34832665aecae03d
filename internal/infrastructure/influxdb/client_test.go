package influxdb

import (
	"errors"
	"testing"
	"time"

	"github.com/lockerfleet/lockgate/internal/infrastructure/config"
)

func testTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1", // nothing listens here
		Token:   "test-token",
		Org:     "lockerfleet",
		Bucket:  "lockgate",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWrite_NoopWhenDisconnected(t *testing.T) {
	c := &Client{connected: false}

	// Writers must be safe no-ops on a disconnected client.
	c.WriteHeartbeat("F1", "10.0.0.7", 3600, 2, testTime())
	c.WriteTransition("F1", false, testTime())
	c.WriteAccessDecision("F1A", "granted", "04AA11", testTime())
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1}, testTime())
	c.Flush()
}
