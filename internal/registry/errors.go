package registry

import "errors"

var (
	// ErrDeviceNotFound indicates no controller with the given name has
	// ever sent a heartbeat.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrUnitNotFound indicates the unit identifier does not resolve to a
	// lock unit on any registered controller.
	ErrUnitNotFound = errors.New("registry: unit not found")
)
