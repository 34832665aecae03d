// Package dispatch turns gateway decisions into controller commands.
//
// The Dispatcher resolves a target unit against the registry, encodes
// the wire command and publishes it to the device's command topic. It
// also owns the delayed unlock mechanism: a granted access schedules a
// PendingUnlock that fires once the configured delay has passed since
// the scan was observed, and anything that invalidates the unlock in
// the meantime (maintenance mode, the device going offline, an
// explicit cancel) wins the race against the timer.
//
// A single mutex serialises scheduling, cancellation and firing, so a
// pending unlock can never slip through after its unit was withdrawn
// from service.
package dispatch
