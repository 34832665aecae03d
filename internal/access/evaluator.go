package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lockerfleet/lockgate/internal/codec"
	"github.com/lockerfleet/lockgate/internal/dispatch"
	"github.com/lockerfleet/lockgate/internal/registry"
)

// Access decision outcomes.
const (
	// OutcomeGranted means the scan passed the allow predicate and a
	// delayed unlock was scheduled.
	OutcomeGranted = "granted"

	// OutcomeDenied means the tag is known but not permitted.
	OutcomeDenied = "denied"

	// OutcomeUnknownTag means the controller did not recognise the tag.
	OutcomeUnknownTag = "unknown_tag"

	// OutcomeMaintenance means the unit is withdrawn from service.
	OutcomeMaintenance = "maintenance"

	// OutcomeUnknownDoor means the door resolves to no registered unit.
	OutcomeUnknownDoor = "unknown_door"
)

// Binary access decisions carried on events and audit records. Every
// outcome reduces to one of these two.
const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
)

// Decision is the evaluated outcome of one scan.
type Decision struct {
	// EventID uniquely identifies this decision across the event
	// topic, the audit trail and telemetry.
	EventID string

	UID      string
	Door     string
	UnitID   string
	Known    bool
	Username string

	// Outcome is one of the Outcome constants.
	Outcome string

	ObservedAt time.Time

	// FireAt is when the scheduled unlock is due. Zero unless the
	// outcome is granted.
	FireAt time.Time
}

// AccessDecision reduces the outcome to the binary allowed/denied
// decision.
func (d Decision) AccessDecision() string {
	if d.Outcome == OutcomeGranted {
		return DecisionAllowed
	}
	return DecisionDenied
}

// AllowFunc is the pluggable allow predicate.
type AllowFunc func(log *codec.AccessLog) bool

// DefaultAllow grants known tags with the "Always" permission, the
// same rule the controllers enforce locally.
func DefaultAllow(log *codec.AccessLog) bool {
	return log.Known && log.Access == "Always"
}

// Evaluator turns scan reports into access decisions.
type Evaluator struct {
	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	allow      AllowFunc
}

// NewEvaluator creates an evaluator. A nil allow predicate uses
// DefaultAllow.
func NewEvaluator(reg *registry.Registry, d *dispatch.Dispatcher, allow AllowFunc) *Evaluator {
	if allow == nil {
		allow = DefaultAllow
	}
	return &Evaluator{reg: reg, dispatcher: d, allow: allow}
}

// Evaluate decides one scan report. Every scan yields a Decision,
// refusals included; only a granted one schedules an unlock.
func (e *Evaluator) Evaluate(log *codec.AccessLog) (Decision, error) {
	d := Decision{
		EventID:    uuid.NewString(),
		UID:        log.UID,
		Door:       log.Door,
		Known:      log.Known,
		Username:   log.Username,
		ObservedAt: log.ObservedAt,
	}

	unit, _, err := e.reg.Unit(log.Door)
	if err != nil {
		if !errors.Is(err, registry.ErrUnitNotFound) {
			return Decision{}, fmt.Errorf("access: %w", err)
		}
		d.Outcome = OutcomeUnknownDoor
		return d, nil
	}
	d.UnitID = unit.ID

	switch {
	case !log.Known:
		d.Outcome = OutcomeUnknownTag
		return d, nil
	case unit.Status == registry.StatusMaintenance:
		d.Outcome = OutcomeMaintenance
		return d, nil
	case !e.allow(log):
		d.Outcome = OutcomeDenied
		return d, nil
	}

	pending, err := e.dispatcher.ScheduleUnlock(unit.ID, log.UID, log.ObservedAt)
	if err != nil {
		// The unit flipped to maintenance between the status check and
		// the schedule. Report it as the refusal it is.
		if errors.Is(err, dispatch.ErrUnitInMaintenance) {
			d.Outcome = OutcomeMaintenance
			return d, nil
		}
		return Decision{}, fmt.Errorf("access: scheduling unlock: %w", err)
	}

	d.Outcome = OutcomeGranted
	d.FireAt = pending.FireAt
	return d, nil
}
