package dispatch

import "errors"

var (
	// ErrUnknownTarget indicates the command names a unit or device the
	// registry has never seen. Nothing is published.
	ErrUnknownTarget = errors.New("dispatch: unknown target")

	// ErrUnitInMaintenance indicates the target unit is withdrawn from
	// service; unlock commands are refused until it returns to normal.
	ErrUnitInMaintenance = errors.New("dispatch: unit in maintenance")

	// ErrDeviceOffline indicates the target's controller has stopped
	// heartbeating; pending unlocks are abandoned rather than fired
	// into a dead device.
	ErrDeviceOffline = errors.New("dispatch: device offline")
)
