package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// maxUnitsPerDevice caps the number of lock units a single controller may
// report. Unit IDs are suffixed A-Z, so 26 is the protocol ceiling.
const maxUnitsPerDevice = 26

// ParseHostname splits a controller hostname into its device name and unit
// count.
//
// Hostnames follow the "<NAME>-<N>" convention, split on the last "-":
// "F1-2" names device "F1" with 2 lock units. The suffix must be a positive
// integer no greater than 26.
//
// Returns:
//   - name: The device name ("F1")
//   - numLocks: The unit count encoded in the suffix
//   - error: ErrProtocolViolation if the hostname does not follow the convention
func ParseHostname(hostname string) (string, int, error) {
	idx := strings.LastIndex(hostname, "-")
	if idx <= 0 || idx == len(hostname)-1 {
		return "", 0, fmt.Errorf("%w: hostname %q has no <name>-<numlocks> suffix", ErrProtocolViolation, hostname)
	}

	name := hostname[:idx]
	suffix := hostname[idx+1:]

	if strings.HasSuffix(name, "-") {
		return "", 0, fmt.Errorf("%w: hostname %q has an empty name segment", ErrProtocolViolation, hostname)
	}

	numLocks, err := strconv.Atoi(suffix)
	if err != nil || numLocks < 1 {
		return "", 0, fmt.Errorf("%w: hostname %q suffix %q is not a positive integer", ErrProtocolViolation, hostname, suffix)
	}
	if numLocks > maxUnitsPerDevice {
		return "", 0, fmt.Errorf("%w: hostname %q reports %d units, maximum is %d", ErrProtocolViolation, hostname, numLocks, maxUnitsPerDevice)
	}

	return name, numLocks, nil
}

// UnitID returns the unit identifier for the index-th unit of a device.
// Unit 0 of device "F1" is "F1A".
func UnitID(deviceName string, index int) string {
	return deviceName + string(rune('A'+index))
}

// UnitIDs fans a device out into its ordered list of unit identifiers.
// Device "F1" with 2 locks yields ["F1A", "F1B"].
func UnitIDs(deviceName string, numLocks int) []string {
	ids := make([]string, numLocks)
	for i := range ids {
		ids[i] = UnitID(deviceName, i)
	}
	return ids
}

// LockIndex converts a zero-based unit index to the 1-based lock index the
// controller protocol uses on the wire.
func LockIndex(unitIndex int) int {
	return unitIndex + 1
}
