package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/lockerfleet/lockgate/internal/infrastructure/database"
)

// schema creates the audit tables on first open. CREATE TABLE IF NOT
// EXISTS keeps reopening an existing trail cheap and idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS access_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id    TEXT NOT NULL UNIQUE,
    uid         TEXT NOT NULL,
    door        TEXT NOT NULL,
    unit_id     TEXT NOT NULL DEFAULT '',
    known       INTEGER NOT NULL,
    decision    TEXT NOT NULL,
    outcome     TEXT NOT NULL DEFAULT '',
    username    TEXT NOT NULL DEFAULT '',
    observed_at TIMESTAMP NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_access_events_uid ON access_events(uid);
CREATE INDEX IF NOT EXISTS idx_access_events_observed_at ON access_events(observed_at);

CREATE TABLE IF NOT EXISTS device_transitions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    device_name TEXT NOT NULL,
    online      INTEGER NOT NULL,
    at          TIMESTAMP NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_device_transitions_device ON device_transitions(device_name);
`

// AccessRecord is one persisted access decision.
type AccessRecord struct {
	// EventID is the unique identifier shared with the published event.
	EventID string

	UID    string
	Door   string
	UnitID string
	Known  bool

	// Decision is the binary "allowed" or "denied".
	Decision string

	// Outcome is the specific reason: "granted", "denied",
	// "unknown_tag", "maintenance" or "unknown_door".
	Outcome string

	Username   string
	ObservedAt time.Time
}

// TransitionRecord is one persisted online/offline boundary crossing.
type TransitionRecord struct {
	DeviceName string
	Online     bool
	At         time.Time
}

// Store is the SQLite-backed audit trail.
type Store struct {
	db *database.DB
}

// NewStore prepares the audit trail on an open database, creating the
// tables if they do not exist.
func NewStore(db *database.DB) (*Store, error) {
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordAccess appends one access decision to the trail.
func (s *Store) RecordAccess(ctx context.Context, rec AccessRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO access_events (event_id, uid, door, unit_id, known, decision, outcome, username, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EventID, rec.UID, rec.Door, rec.UnitID, rec.Known, rec.Decision, rec.Outcome, rec.Username, rec.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording access event: %w", err)
	}
	return nil
}

// RecordTransition appends one device online/offline transition.
func (s *Store) RecordTransition(ctx context.Context, rec TransitionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_transitions (device_name, online, at) VALUES (?, ?, ?)`,
		rec.DeviceName, rec.Online, rec.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording device transition: %w", err)
	}
	return nil
}

// RecentAccess returns the most recent access decisions, newest first.
func (s *Store) RecentAccess(ctx context.Context, limit int) ([]AccessRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, uid, door, unit_id, known, decision, outcome, username, observed_at
		 FROM access_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying access events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []AccessRecord
	for rows.Next() {
		var rec AccessRecord
		if err := rows.Scan(&rec.EventID, &rec.UID, &rec.Door, &rec.UnitID,
			&rec.Known, &rec.Decision, &rec.Outcome, &rec.Username, &rec.ObservedAt); err != nil {
			return nil, fmt.Errorf("scanning access event: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access events: %w", err)
	}
	return out, nil
}

// PruneBefore deletes trail entries observed before the cutoff and
// returns how many rows were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM access_events WHERE observed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning access events: %w", err)
	}
	accessRows, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM device_transitions WHERE at < ?`, cutoff.UTC())
	if err != nil {
		return accessRows, fmt.Errorf("pruning device transitions: %w", err)
	}
	transitionRows, _ := res.RowsAffected()

	return accessRows + transitionRows, nil
}
