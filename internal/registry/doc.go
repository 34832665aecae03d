// Package registry holds the in-memory inventory of locker controllers and
// their lock units.
//
// Controllers self-register through heartbeats; there is no provisioning
// step. Each heartbeat upserts one device and fans out into its lock units
// ("F1-2" becomes device "F1" with units "F1A" and "F1B"). Unit statuses
// survive heartbeat updates, and a heartbeat that disagrees with the
// registered unit count is rejected without touching the last good state.
//
// A device's online flag is never stored. It is derived from the time since
// the last heartbeat at every read, so a crashed controller shows offline as
// soon as its heartbeat goes stale, with no writer involved.
//
// All methods are safe for concurrent use. Snapshots returned to callers are
// copies; mutating them does not affect the registry.
package registry
