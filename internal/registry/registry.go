package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/lockerfleet/lockgate/internal/codec"
)

// deviceState is the registry's internal mutable record for one controller.
type deviceState struct {
	name            string
	hostname        string
	ip              string
	controllerType  string
	numLocks        int
	uptimeSeconds   int64
	lastHeartbeatAt time.Time

	// reportedOnline is the online state last announced through
	// CollectTransitions. Comparing it against the derived state tells
	// the liveness monitor which devices flipped since the last scan.
	reportedOnline bool

	units []UnitStatus
}

// Registry is the concurrency-safe inventory of controllers and lock units.
type Registry struct {
	mu               sync.RWMutex
	devices          map[string]*deviceState
	heartbeatTimeout time.Duration
	now              func() time.Time
}

// New creates an empty registry. heartbeatTimeout is the silence window
// after which a device is considered offline.
func New(heartbeatTimeout time.Duration) *Registry {
	return &Registry{
		devices:          make(map[string]*deviceState),
		heartbeatTimeout: heartbeatTimeout,
		now:              time.Now,
	}
}

// SetClock overrides the registry's time source. Tests only.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// UpsertFromHeartbeat registers or refreshes the device a heartbeat
// describes and returns a snapshot of its post-update state.
//
// A first heartbeat creates the device with all units available. Later
// heartbeats refresh IP, uptime and the heartbeat timestamp while
// preserving unit statuses. A heartbeat whose unit count disagrees with
// the registered device is rejected with ErrProtocolViolation and the
// last good state is kept.
func (r *Registry) UpsertFromHeartbeat(hb *codec.Heartbeat) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[hb.DeviceName]
	if ok && dev.numLocks != hb.NumLocks {
		return Device{}, fmt.Errorf("%w: device %q registered with %d units, heartbeat reports %d",
			codec.ErrProtocolViolation, hb.DeviceName, dev.numLocks, hb.NumLocks)
	}

	if !ok {
		dev = &deviceState{
			name:     hb.DeviceName,
			numLocks: hb.NumLocks,
			units:    make([]UnitStatus, hb.NumLocks),
		}
		for i := range dev.units {
			dev.units[i] = StatusAvailable
		}
		r.devices[hb.DeviceName] = dev
	}

	dev.hostname = hb.Hostname
	dev.ip = hb.IP
	dev.controllerType = hb.ControllerType
	dev.uptimeSeconds = hb.UptimeSeconds
	dev.lastHeartbeatAt = hb.ObservedAt

	return r.snapshotLocked(dev), nil
}

// Device returns a snapshot of the named device.
func (r *Registry) Device(name string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[name]
	if !ok {
		return Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}
	return r.snapshotLocked(dev), nil
}

// Devices returns snapshots of every registered device.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, r.snapshotLocked(dev))
	}
	return out
}

// OnlineDevices returns snapshots of devices whose last heartbeat is
// within the timeout.
func (r *Registry) OnlineDevices() []Device {
	return r.filterDevices(true)
}

// OfflineDevices returns snapshots of devices whose heartbeat has gone
// stale.
func (r *Registry) OfflineDevices() []Device {
	return r.filterDevices(false)
}

func (r *Registry) filterDevices(online bool) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var out []Device
	for _, dev := range r.devices {
		if r.onlineAt(dev, now) == online {
			out = append(out, r.snapshotLocked(dev))
		}
	}
	return out
}

// Unit resolves a unit identifier, e.g. "F1A", to its unit and device
// snapshots.
func (r *Registry) Unit(unitID string) (Unit, Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, idx, err := r.resolveLocked(unitID)
	if err != nil {
		return Unit{}, Device{}, err
	}
	snap := r.snapshotLocked(dev)
	return snap.Units[idx], snap, nil
}

// SetUnitStatus moves a unit to the given status and reports whether the
// status actually changed. Setting a unit to its current status is a no-op.
func (r *Registry) SetUnitStatus(unitID string, status UnitStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("registry: invalid unit status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, idx, err := r.resolveLocked(unitID)
	if err != nil {
		return false, err
	}
	if dev.units[idx] == status {
		return false, nil
	}
	dev.units[idx] = status
	return true, nil
}

// CollectTransitions derives the current online state of every device and
// returns one Transition per device that flipped since the previous call.
// The flip is recorded atomically, so each boundary crossing is reported
// exactly once even with concurrent heartbeats arriving.
func (r *Registry) CollectTransitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var out []Transition
	for _, dev := range r.devices {
		online := r.onlineAt(dev, now)
		if online == dev.reportedOnline {
			continue
		}
		dev.reportedOnline = online
		out = append(out, Transition{DeviceName: dev.name, Online: online, At: now})
	}
	return out
}

// resolveLocked maps a unit identifier to its device state and unit index.
// Callers must hold r.mu.
func (r *Registry) resolveLocked(unitID string) (*deviceState, int, error) {
	if len(unitID) < 2 {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnitNotFound, unitID)
	}

	name := unitID[:len(unitID)-1]
	idx := int(unitID[len(unitID)-1] - 'A')

	dev, ok := r.devices[name]
	if !ok || idx < 0 || idx >= len(dev.units) {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnitNotFound, unitID)
	}
	return dev, idx, nil
}

// snapshotLocked copies a device state out. Callers must hold r.mu.
func (r *Registry) snapshotLocked(dev *deviceState) Device {
	units := make([]Unit, len(dev.units))
	for i, status := range dev.units {
		units[i] = Unit{
			ID:         codec.UnitID(dev.name, i),
			DeviceName: dev.name,
			Index:      i,
			Status:     status,
		}
	}

	return Device{
		Name:            dev.name,
		Hostname:        dev.hostname,
		IP:              dev.ip,
		ControllerType:  dev.controllerType,
		NumLocks:        dev.numLocks,
		UptimeSeconds:   dev.uptimeSeconds,
		LastHeartbeatAt: dev.lastHeartbeatAt,
		Online:          r.onlineAt(dev, r.now()),
		Units:           units,
	}
}

func (r *Registry) onlineAt(dev *deviceState, now time.Time) bool {
	if dev.lastHeartbeatAt.IsZero() {
		return false
	}
	return now.Sub(dev.lastHeartbeatAt) < r.heartbeatTimeout
}
