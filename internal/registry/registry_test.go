package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/lockerfleet/lockgate/internal/codec"
)

const testTimeout = 300 * time.Second

func heartbeat(deviceName string, numLocks int, at time.Time) *codec.Heartbeat {
	return &codec.Heartbeat{
		Hostname:       deviceName + "-2",
		DeviceName:     deviceName,
		IP:             "10.0.0.7",
		ControllerType: "esp32",
		NumLocks:       numLocks,
		UptimeSeconds:  3600,
		ObservedAt:     at,
	}
}

func TestUpsertFromHeartbeat_CreatesDevice(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(testTimeout)
	r.SetClock(func() time.Time { return base })

	dev, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base))
	if err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	if dev.Name != "F1" {
		t.Errorf("Name = %q, want F1", dev.Name)
	}
	if !dev.Online {
		t.Error("Online = false, want true after fresh heartbeat")
	}
	if len(dev.Units) != 2 {
		t.Fatalf("len(Units) = %d, want 2", len(dev.Units))
	}
	for i, want := range []string{"F1A", "F1B"} {
		if dev.Units[i].ID != want {
			t.Errorf("Units[%d].ID = %q, want %q", i, dev.Units[i].ID, want)
		}
		if dev.Units[i].Status != StatusAvailable {
			t.Errorf("Units[%d].Status = %q, want %q", i, dev.Units[i].Status, StatusAvailable)
		}
	}
}

func TestUpsertFromHeartbeat_PreservesUnitStatus(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(testTimeout)
	r.SetClock(func() time.Time { return base })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}
	if _, err := r.SetUnitStatus("F1B", StatusMaintenance); err != nil {
		t.Fatalf("SetUnitStatus() error = %v", err)
	}

	dev, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base.Add(time.Minute)))
	if err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	if dev.Units[1].Status != StatusMaintenance {
		t.Errorf("Units[1].Status = %q, want %q after refresh", dev.Units[1].Status, StatusMaintenance)
	}
	if !dev.LastHeartbeatAt.Equal(base.Add(time.Minute)) {
		t.Errorf("LastHeartbeatAt = %v, want %v", dev.LastHeartbeatAt, base.Add(time.Minute))
	}
}

func TestUpsertFromHeartbeat_NumLocksMismatch(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(testTimeout)
	r.SetClock(func() time.Time { return base })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	bad := heartbeat("F1", 3, base.Add(time.Minute))
	bad.Hostname = "F1-3"
	if _, err := r.UpsertFromHeartbeat(bad); !errors.Is(err, codec.ErrProtocolViolation) {
		t.Fatalf("UpsertFromHeartbeat() error = %v, want ErrProtocolViolation", err)
	}

	// Last good state must be untouched.
	dev, err := r.Device("F1")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if dev.NumLocks != 2 {
		t.Errorf("NumLocks = %d, want 2 after rejected heartbeat", dev.NumLocks)
	}
	if !dev.LastHeartbeatAt.Equal(base) {
		t.Errorf("LastHeartbeatAt = %v, want %v after rejected heartbeat", dev.LastHeartbeatAt, base)
	}
}

func TestUnit_Resolution(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(testTimeout)
	r.SetClock(func() time.Time { return base })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	unit, dev, err := r.Unit("F1B")
	if err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if unit.Index != 1 {
		t.Errorf("Index = %d, want 1", unit.Index)
	}
	if dev.IP != "10.0.0.7" {
		t.Errorf("device IP = %q, want 10.0.0.7", dev.IP)
	}

	for _, id := range []string{"F1C", "F2A", "X", ""} {
		if _, _, err := r.Unit(id); !errors.Is(err, ErrUnitNotFound) {
			t.Errorf("Unit(%q) error = %v, want ErrUnitNotFound", id, err)
		}
	}
}

func TestSetUnitStatus(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(testTimeout)
	r.SetClock(func() time.Time { return base })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	changed, err := r.SetUnitStatus("F1A", StatusMaintenance)
	if err != nil {
		t.Fatalf("SetUnitStatus() error = %v", err)
	}
	if !changed {
		t.Error("changed = false, want true on first transition")
	}

	// Idempotent repeat.
	changed, err = r.SetUnitStatus("F1A", StatusMaintenance)
	if err != nil {
		t.Fatalf("SetUnitStatus() error = %v", err)
	}
	if changed {
		t.Error("changed = true, want false on repeated transition")
	}

	if _, err := r.SetUnitStatus("F1A", "broken"); err == nil {
		t.Error("SetUnitStatus() with invalid status, want error")
	}
	if _, err := r.SetUnitStatus("F9A", StatusOccupied); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("SetUnitStatus() error = %v, want ErrUnitNotFound", err)
	}
}

func TestOnline_DerivedFromHeartbeatAge(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r := New(testTimeout)
	r.SetClock(func() time.Time { return now })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	dev, _ := r.Device("F1")
	if !dev.Online {
		t.Error("Online = false immediately after heartbeat, want true")
	}

	// Just inside the window.
	now = base.Add(testTimeout - time.Second)
	dev, _ = r.Device("F1")
	if !dev.Online {
		t.Error("Online = false inside the timeout window, want true")
	}

	// At the boundary the device is offline; no writer is involved.
	now = base.Add(testTimeout)
	dev, _ = r.Device("F1")
	if dev.Online {
		t.Error("Online = true at the timeout boundary, want false")
	}
}

func TestCollectTransitions(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r := New(testTimeout)
	r.SetClock(func() time.Time { return now })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	// First scan announces the device coming online.
	trs := r.CollectTransitions()
	if len(trs) != 1 || !trs[0].Online || trs[0].DeviceName != "F1" {
		t.Fatalf("CollectTransitions() = %+v, want one online transition for F1", trs)
	}

	// Steady state produces nothing.
	if trs := r.CollectTransitions(); len(trs) != 0 {
		t.Fatalf("CollectTransitions() = %+v, want none in steady state", trs)
	}

	// Heartbeat goes stale.
	now = base.Add(testTimeout + time.Second)
	trs = r.CollectTransitions()
	if len(trs) != 1 || trs[0].Online {
		t.Fatalf("CollectTransitions() = %+v, want one offline transition", trs)
	}

	// Exactly once per crossing.
	if trs := r.CollectTransitions(); len(trs) != 0 {
		t.Fatalf("CollectTransitions() = %+v, want none after the flip was reported", trs)
	}

	// Recovery heartbeat flips it back.
	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, now)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}
	trs = r.CollectTransitions()
	if len(trs) != 1 || !trs[0].Online {
		t.Fatalf("CollectTransitions() = %+v, want one online transition after recovery", trs)
	}
}

func TestDevices_SnapshotIsolation(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(testTimeout)
	r.SetClock(func() time.Time { return base })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	devs := r.Devices()
	if len(devs) != 1 {
		t.Fatalf("len(Devices()) = %d, want 1", len(devs))
	}
	devs[0].Units[0].Status = StatusOccupied

	dev, _ := r.Device("F1")
	if dev.Units[0].Status != StatusAvailable {
		t.Error("mutating a snapshot leaked into the registry")
	}
}

func TestOnlineOfflineDevices(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r := New(testTimeout)
	r.SetClock(func() time.Time { return now })

	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}
	if _, err := r.UpsertFromHeartbeat(heartbeat("F2", 1, base)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	if got := len(r.OnlineDevices()); got != 2 {
		t.Fatalf("OnlineDevices() len = %d, want 2", got)
	}
	if got := len(r.OfflineDevices()); got != 0 {
		t.Fatalf("OfflineDevices() len = %d, want 0", got)
	}

	// Refresh F1 only, then age past the timeout.
	now = base.Add(testTimeout)
	if _, err := r.UpsertFromHeartbeat(heartbeat("F1", 2, now)); err != nil {
		t.Fatalf("UpsertFromHeartbeat() error = %v", err)
	}

	online := r.OnlineDevices()
	if len(online) != 1 || online[0].Name != "F1" {
		t.Errorf("OnlineDevices() = %+v, want only F1", online)
	}
	offline := r.OfflineDevices()
	if len(offline) != 1 || offline[0].Name != "F2" {
		t.Errorf("OfflineDevices() = %+v, want only F2", offline)
	}
}
