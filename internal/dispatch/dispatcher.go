package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lockerfleet/lockgate/internal/codec"
	"github.com/lockerfleet/lockgate/internal/infrastructure/bus"
	"github.com/lockerfleet/lockgate/internal/registry"
)

// gatewayUID is stamped on commands issued without a requesting tag,
// such as operator-initiated maintenance toggles.
const gatewayUID = "gateway"

// Logger is the minimal logging surface the dispatcher needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Dispatcher.
type Options struct {
	// Topics builds the command topic for each device.
	Topics bus.Topics

	// QoS is the QoS level for published commands.
	QoS byte

	// UnlockDelay is how long a granted access waits before the
	// openlock command is published.
	UnlockDelay time.Duration

	// Logger receives dispatch outcomes. Optional.
	Logger Logger
}

// Dispatcher publishes controller commands and manages delayed unlocks.
//
// All methods are safe for concurrent use. One pending unlock is held
// per unit; a second grant while one is pending keeps the existing one.
type Dispatcher struct {
	reg    *registry.Registry
	bus    bus.Bus
	topics bus.Topics
	qos    byte
	delay  time.Duration
	logger Logger

	mu      sync.Mutex
	pending map[string]*pendingUnlock

	// onUnlock is invoked after a delayed openlock is published.
	onUnlock func(PendingUnlock)

	now func() time.Time
}

// New creates a dispatcher over the given registry and bus.
func New(reg *registry.Registry, b bus.Bus, opts Options) *Dispatcher {
	return &Dispatcher{
		reg:     reg,
		bus:     b,
		topics:  opts.Topics,
		qos:     opts.QoS,
		delay:   opts.UnlockDelay,
		logger:  opts.Logger,
		pending: make(map[string]*pendingUnlock),
		now:     time.Now,
	}
}

// SetClock overrides the dispatcher's time source. Tests only.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// SetOnUnlock registers a callback invoked after a delayed unlock fires
// and its openlock command is published.
func (d *Dispatcher) SetOnUnlock(callback func(PendingUnlock)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUnlock = callback
}

// OpenLock publishes an immediate openlock command to a unit.
//
// Returns ErrUnknownTarget for unregistered units and
// ErrUnitInMaintenance when the unit is withdrawn from service.
func (d *Dispatcher) OpenLock(unitID, uid string) error {
	unit, dev, err := d.resolve(unitID)
	if err != nil {
		return err
	}
	if unit.Status == registry.StatusMaintenance {
		return fmt.Errorf("%w: %s", ErrUnitInMaintenance, unitID)
	}
	return d.publishCommand(codec.CommandOpenLock, unit, dev, uid)
}

// ScheduleUnlock schedules a delayed openlock for a granted access.
// The unlock fires at observedAt plus the configured delay; an
// observation already older than the delay fires immediately.
//
// If an unlock is already pending for the unit, the existing one is
// kept and returned; the duplicate grant schedules nothing.
func (d *Dispatcher) ScheduleUnlock(unitID, uid string, observedAt time.Time) (PendingUnlock, error) {
	unit, _, err := d.resolve(unitID)
	if err != nil {
		return PendingUnlock{}, err
	}
	if unit.Status == registry.StatusMaintenance {
		return PendingUnlock{}, fmt.Errorf("%w: %s", ErrUnitInMaintenance, unitID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.pending[unitID]; ok {
		return existing.PendingUnlock, nil
	}

	fireAt := observedAt.Add(d.delay)
	wait := fireAt.Sub(d.now())
	if wait < 0 {
		wait = 0
	}
	p := &pendingUnlock{
		PendingUnlock: PendingUnlock{
			ID:          uuid.NewString(),
			UnitID:      unitID,
			UID:         uid,
			ScheduledAt: observedAt,
			FireAt:      fireAt,
		},
	}
	p.timer = time.AfterFunc(wait, func() { d.fire(p) })
	d.pending[unitID] = p

	return p.PendingUnlock, nil
}

// fire publishes the openlock for a pending unlock once its delay
// elapses. The cancelled flag, unit status and device liveness are
// re-checked under the dispatcher mutex, so a cancellation, a
// maintenance toggle or an offline transition that beat the timer
// always wins.
func (d *Dispatcher) fire(p *pendingUnlock) {
	d.mu.Lock()
	if p.cancelled {
		d.mu.Unlock()
		return
	}
	delete(d.pending, p.UnitID)

	unit, dev, err := d.resolve(p.UnitID)
	switch {
	case err == nil && unit.Status == registry.StatusMaintenance:
		err = fmt.Errorf("%w: %s", ErrUnitInMaintenance, p.UnitID)
	case err == nil && !dev.Online:
		err = fmt.Errorf("%w: %s", ErrDeviceOffline, dev.Name)
	}
	callback := d.onUnlock
	d.mu.Unlock()

	if err != nil {
		if d.logger != nil {
			d.logger.Warn("pending unlock aborted",
				"unit", p.UnitID,
				"uid", p.UID,
				"error", err,
			)
		}
		return
	}

	if err := d.publishCommand(codec.CommandOpenLock, unit, dev, p.UID); err != nil {
		if d.logger != nil {
			d.logger.Error("pending unlock publish failed",
				"unit", p.UnitID,
				"uid", p.UID,
				"error", err,
			)
		}
		return
	}

	if callback != nil {
		callback(p.PendingUnlock)
	}
}

// CancelUnlock cancels a pending unlock and reports whether one existed.
func (d *Dispatcher) CancelUnlock(unitID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked(unitID)
}

// cancelLocked marks a pending unlock cancelled. Callers must hold d.mu.
func (d *Dispatcher) cancelLocked(unitID string) bool {
	p, ok := d.pending[unitID]
	if !ok {
		return false
	}
	p.cancelled = true
	p.timer.Stop()
	delete(d.pending, unitID)
	return true
}

// ToggleMaintenance moves a unit in or out of maintenance mode and
// publishes the matching command to its controller.
//
// Entering maintenance cancels any pending unlock for the unit before
// the command goes out; the cancellation and the status change happen
// under the same lock the unlock timer checks, closing the race.
// Toggling to the current state republishes the command but is
// otherwise a no-op.
func (d *Dispatcher) ToggleMaintenance(unitID string, on bool, uid string) error {
	unit, dev, err := d.resolve(unitID)
	if err != nil {
		return err
	}

	status := registry.StatusAvailable
	cmdType := codec.CommandNormal
	if on {
		status = registry.StatusMaintenance
		cmdType = codec.CommandMaintenance
	}

	d.mu.Lock()
	if on {
		d.cancelLocked(unitID)
	}
	changed, err := d.reg.SetUnitStatus(unitID, status)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	if d.logger != nil && changed {
		d.logger.Info("unit status changed",
			"unit", unitID,
			"status", string(status),
		)
	}

	return d.publishCommand(cmdType, unit, dev, uid)
}

// Sync asks a controller to resend its current state for a unit.
//
// Returns ErrUnknownTarget if the unit does not resolve.
func (d *Dispatcher) Sync(unitID, uid string) error {
	unit, dev, err := d.resolve(unitID)
	if err != nil {
		return err
	}
	return d.publishCommand(codec.CommandSync, unit, dev, uid)
}

// Pending returns the pending unlock for a unit, if any.
func (d *Dispatcher) Pending(unitID string) (PendingUnlock, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[unitID]
	if !ok {
		return PendingUnlock{}, false
	}
	return p.PendingUnlock, true
}

// PendingCount returns the number of scheduled unlocks.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending unlock. Called on gateway shutdown so no
// timer fires into a closed bus.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for unitID, p := range d.pending {
		p.cancelled = true
		p.timer.Stop()
		delete(d.pending, unitID)
	}
}

// resolve maps a unit identifier to registry snapshots, translating
// lookup failures into the dispatch error taxonomy.
func (d *Dispatcher) resolve(unitID string) (registry.Unit, registry.Device, error) {
	unit, dev, err := d.reg.Unit(unitID)
	if err != nil {
		if errors.Is(err, registry.ErrUnitNotFound) {
			return registry.Unit{}, registry.Device{}, fmt.Errorf("%w: unit %q", ErrUnknownTarget, unitID)
		}
		return registry.Unit{}, registry.Device{}, fmt.Errorf("dispatch: %w", err)
	}
	return unit, dev, nil
}

// publishCommand encodes and publishes one command to the device's
// command topic.
func (d *Dispatcher) publishCommand(cmdType codec.CommandType, unit registry.Unit, dev registry.Device, uid string) error {
	if uid == "" {
		uid = gatewayUID
	}

	payload, err := codec.EncodeCommand(codec.Command{
		Type:       cmdType,
		TargetUnit: unit.ID,
		DoorIP:     dev.IP,
		UID:        uid,
		Lock:       codec.LockIndex(unit.Index),
	})
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}

	topic := d.topics.Command(dev.Name)
	if err := d.bus.Publish(topic, payload, d.qos, false); err != nil {
		return fmt.Errorf("dispatch: publishing %s to %s: %w", cmdType, topic, err)
	}

	if d.logger != nil {
		d.logger.Info("command dispatched",
			"cmd", string(cmdType),
			"unit", unit.ID,
			"device", dev.Name,
			"uid", uid,
		)
	}
	return nil
}
