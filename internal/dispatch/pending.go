package dispatch

import (
	"time"
)

// PendingUnlock is a snapshot of a scheduled delayed unlock.
type PendingUnlock struct {
	// ID uniquely identifies this pending unlock.
	ID string

	// UnitID is the unit that will be opened.
	UnitID string

	// UID is the RFID tag the unlock was granted to.
	UID string

	// ScheduledAt is when the granting scan was observed.
	ScheduledAt time.Time

	// FireAt is ScheduledAt plus the unlock delay.
	FireAt time.Time
}

// pendingUnlock is the dispatcher's internal mutable record. The
// cancelled flag is flipped under the dispatcher mutex so a timer that
// has already popped still sees the cancellation before publishing.
type pendingUnlock struct {
	PendingUnlock
	timer     *time.Timer
	cancelled bool
}
