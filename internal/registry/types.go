package registry

import "time"

// UnitStatus is the lifecycle state of a single lock unit.
type UnitStatus string

// Unit lifecycle states.
const (
	// StatusAvailable means the unit is free for assignment.
	StatusAvailable UnitStatus = "available"

	// StatusOccupied means the unit is assigned and in use.
	StatusOccupied UnitStatus = "occupied"

	// StatusMaintenance means the unit is withdrawn from service.
	// Access and unlocks are refused until it returns to normal.
	StatusMaintenance UnitStatus = "maintenance"
)

// Valid reports whether s is a recognised unit status.
func (s UnitStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusOccupied, StatusMaintenance:
		return true
	}
	return false
}

// Unit is a snapshot of one physical lock compartment.
type Unit struct {
	// ID is the unit identifier, e.g. "F1A".
	ID string

	// DeviceName names the controller this unit belongs to.
	DeviceName string

	// Index is the zero-based position of the unit on its controller.
	// The wire protocol addresses locks by Index+1.
	Index int

	Status UnitStatus
}

// Device is a snapshot of one locker controller and its units.
type Device struct {
	// Name is the device identifier parsed from the hostname, e.g. "F1".
	Name string

	// Hostname is the raw name the controller reports, e.g. "F1-2".
	Hostname string

	IP             string
	ControllerType string
	NumLocks       int
	UptimeSeconds  int64

	// LastHeartbeatAt is when the most recent heartbeat was observed.
	LastHeartbeatAt time.Time

	// Online is derived at read time from LastHeartbeatAt and the
	// configured heartbeat timeout. It is never stored.
	Online bool

	// Units are the device's lock units in wire order.
	Units []Unit
}

// Transition records a device crossing the online/offline boundary.
type Transition struct {
	DeviceName string
	Online     bool
	At         time.Time
}
