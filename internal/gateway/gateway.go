package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lockerfleet/lockgate/internal/access"
	"github.com/lockerfleet/lockgate/internal/audit"
	"github.com/lockerfleet/lockgate/internal/codec"
	"github.com/lockerfleet/lockgate/internal/dispatch"
	"github.com/lockerfleet/lockgate/internal/infrastructure/bus"
	"github.com/lockerfleet/lockgate/internal/infrastructure/config"
	"github.com/lockerfleet/lockgate/internal/infrastructure/influxdb"
	"github.com/lockerfleet/lockgate/internal/infrastructure/logging"
	"github.com/lockerfleet/lockgate/internal/liveness"
	"github.com/lockerfleet/lockgate/internal/registry"
)

// Options assembles a Gateway from its dependencies.
type Options struct {
	Config *config.Config
	Logger *logging.Logger
	Bus    bus.Bus

	// Audit is the persistent event trail. Optional.
	Audit *audit.Store

	// Telemetry is the time-series sink. Optional.
	Telemetry *influxdb.Client

	// Allow overrides the access predicate. Nil uses the default.
	Allow access.AllowFunc
}

// Gateway routes controller traffic and owns the domain components.
type Gateway struct {
	cfg    *config.Config
	logger *logging.Logger
	bus    bus.Bus
	topics bus.Topics

	reg        *registry.Registry
	dispatcher *dispatch.Dispatcher
	evaluator  *access.Evaluator
	monitor    *liveness.Monitor

	audit     *audit.Store
	telemetry *influxdb.Client

	now func() time.Time
}

// New assembles a gateway. Call Start to begin processing.
func New(opts Options) *Gateway {
	cfg := opts.Config
	topics := bus.Topics{Base: cfg.Topics.Base}
	qos := byte(cfg.Broker.QoS)

	reg := registry.New(cfg.HeartbeatTimeout())

	g := &Gateway{
		cfg:       cfg,
		logger:    opts.Logger,
		bus:       opts.Bus,
		topics:    topics,
		reg:       reg,
		audit:     opts.Audit,
		telemetry: opts.Telemetry,
		now:       time.Now,
	}

	g.dispatcher = dispatch.New(reg, opts.Bus, dispatch.Options{
		Topics:      topics,
		QoS:         qos,
		UnlockDelay: cfg.UnlockDelay(),
		Logger:      opts.Logger,
	})
	g.dispatcher.SetOnUnlock(g.handleUnlockFired)

	g.evaluator = access.NewEvaluator(reg, g.dispatcher, opts.Allow)

	g.monitor = liveness.New(reg, cfg.LivenessInterval(), g.handleTransition)
	g.monitor.SetLogger(opts.Logger)

	return g
}

// Start subscribes to the inbound topic and begins liveness scanning.
func (g *Gateway) Start() error {
	if err := g.bus.Subscribe(g.topics.Inbound(), byte(g.cfg.Broker.QoS), g.handleInbound); err != nil {
		return fmt.Errorf("gateway: subscribing to %s: %w", g.topics.Inbound(), err)
	}
	g.monitor.Start()

	g.logger.Info("gateway started",
		"inbound_topic", g.topics.Inbound(),
		"heartbeat_timeout", g.cfg.HeartbeatTimeout().String(),
		"unlock_delay", g.cfg.UnlockDelay().String(),
	)
	return nil
}

// Stop halts liveness scanning and cancels pending unlocks. The bus is
// closed by the caller that opened it.
func (g *Gateway) Stop() {
	g.monitor.Stop()
	g.dispatcher.Stop()
	g.logger.Info("gateway stopped")
}

// HealthCheck verifies the gateway's transport is functioning.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	return g.bus.HealthCheck(ctx)
}

// handleInbound decodes and routes one message from the shared topic.
// Returned errors are logged by the bus handler wrapper.
func (g *Gateway) handleInbound(topic string, payload []byte) error {
	msg, err := codec.Decode(payload, g.now())
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", topic, err)
	}

	switch m := msg.(type) {
	case *codec.Heartbeat:
		return g.handleHeartbeat(m)
	case *codec.AccessLog:
		return g.handleAccessLog(m)
	case *codec.Ack:
		g.logger.Debug("command acknowledged",
			"cmd", m.Cmd,
			"doorip", m.DoorIP,
			"lock", m.Lock,
			"uid", m.UID,
		)
		return nil
	default:
		return fmt.Errorf("gateway: unhandled message type %T", msg)
	}
}

// handleHeartbeat upserts the device and feeds the telemetry sink. The
// first heartbeat from a device publishes a registration event.
func (g *Gateway) handleHeartbeat(hb *codec.Heartbeat) error {
	_, err := g.reg.Device(hb.DeviceName)
	isNew := errors.Is(err, registry.ErrDeviceNotFound)

	dev, err := g.reg.UpsertFromHeartbeat(hb)
	if err != nil {
		return fmt.Errorf("gateway: heartbeat from %s: %w", hb.Hostname, err)
	}

	g.logger.Debug("heartbeat",
		"device", dev.Name,
		"ip", dev.IP,
		"uptime", hb.UptimeSeconds,
	)

	if isNew {
		g.logger.Info("device registered",
			"device", dev.Name,
			"hostname", dev.Hostname,
			"units", dev.NumLocks,
		)
		g.publishEvent(g.topics.DeviceEvents(), DeviceEvent{
			EventID:   uuid.NewString(),
			Type:      EventDeviceRegistered,
			Device:    dev.Name,
			Hostname:  dev.Hostname,
			IP:        dev.IP,
			NumLocks:  dev.NumLocks,
			Timestamp: eventTime(hb.ObservedAt),
		})
	}

	if g.telemetry != nil {
		g.telemetry.WriteHeartbeat(dev.Name, dev.IP, hb.UptimeSeconds, dev.NumLocks, hb.ObservedAt)
	}
	return nil
}

// handleAccessLog evaluates a scan and fans the decision out to the
// event topic, the audit trail and telemetry.
func (g *Gateway) handleAccessLog(log *codec.AccessLog) error {
	decision, err := g.evaluator.Evaluate(log)
	if err != nil {
		return fmt.Errorf("gateway: access log: %w", err)
	}

	g.logger.Info("access decision",
		"uid", decision.UID,
		"door", decision.Door,
		"outcome", decision.Outcome,
	)

	ev := AccessEvent{
		EventID:   decision.EventID,
		Type:      EventAccessDecision,
		UID:       decision.UID,
		Door:      decision.Door,
		Unit:      decision.UnitID,
		Known:     decision.Known,
		Username:  decision.Username,
		Decision:  decision.AccessDecision(),
		Outcome:   decision.Outcome,
		Timestamp: eventTime(decision.ObservedAt),
	}
	if !decision.FireAt.IsZero() {
		ev.FireAt = eventTime(decision.FireAt)
	}
	g.publishEvent(g.topics.AccessEvents(), ev)

	if g.audit != nil {
		rec := audit.AccessRecord{
			EventID:    decision.EventID,
			UID:        decision.UID,
			Door:       decision.Door,
			UnitID:     decision.UnitID,
			Known:      decision.Known,
			Decision:   decision.AccessDecision(),
			Outcome:    decision.Outcome,
			Username:   decision.Username,
			ObservedAt: decision.ObservedAt,
		}
		if err := g.audit.RecordAccess(context.Background(), rec); err != nil {
			g.logger.Error("audit write failed", "event_id", decision.EventID, "error", err)
		}
	}

	if g.telemetry != nil {
		g.telemetry.WriteAccessDecision(decision.Door, decision.Outcome, decision.UID, decision.ObservedAt)
	}
	return nil
}

// handleTransition publishes and records a liveness boundary crossing.
func (g *Gateway) handleTransition(tr registry.Transition) {
	evType := EventDeviceOffline
	if tr.Online {
		evType = EventDeviceOnline
	}

	g.publishEvent(g.topics.DeviceEvents(), DeviceEvent{
		EventID:   uuid.NewString(),
		Type:      evType,
		Device:    tr.DeviceName,
		Timestamp: eventTime(tr.At),
	})

	if g.audit != nil {
		rec := audit.TransitionRecord{DeviceName: tr.DeviceName, Online: tr.Online, At: tr.At}
		if err := g.audit.RecordTransition(context.Background(), rec); err != nil {
			g.logger.Error("audit write failed", "device", tr.DeviceName, "error", err)
		}
	}

	if g.telemetry != nil {
		g.telemetry.WriteTransition(tr.DeviceName, tr.Online, tr.At)
	}
}

// handleUnlockFired publishes the event for a delayed unlock going out.
func (g *Gateway) handleUnlockFired(p dispatch.PendingUnlock) {
	g.publishEvent(g.topics.AccessEvents(), AccessEvent{
		EventID:   p.ID,
		Type:      EventAccessUnlock,
		UID:       p.UID,
		Unit:      p.UnitID,
		Known:     true,
		Decision:  access.DecisionAllowed,
		Timestamp: eventTime(g.now()),
	})
}

// publishEvent marshals and publishes one event. Events are
// best-effort; failures are logged and processing continues.
func (g *Gateway) publishEvent(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		g.logger.Error("event marshal failed", "topic", topic, "error", err)
		return
	}
	if err := g.bus.Publish(topic, payload, byte(g.cfg.Broker.QoS), false); err != nil {
		g.logger.Error("event publish failed", "topic", topic, "error", err)
	}
}

// OpenLock publishes an immediate openlock command to a unit.
func (g *Gateway) OpenLock(unitID, uid string) error {
	return g.dispatcher.OpenLock(unitID, uid)
}

// ToggleMaintenance moves a unit in or out of maintenance mode.
func (g *Gateway) ToggleMaintenance(unitID string, on bool, uid string) error {
	return g.dispatcher.ToggleMaintenance(unitID, on, uid)
}

// Sync asks a controller to resend its current state for a unit.
func (g *Gateway) Sync(unitID, uid string) error {
	return g.dispatcher.Sync(unitID, uid)
}

// Devices returns snapshots of every registered device.
func (g *Gateway) Devices() []registry.Device {
	return g.reg.Devices()
}

// Device returns a snapshot of one device.
func (g *Gateway) Device(name string) (registry.Device, error) {
	return g.reg.Device(name)
}

// OnlineDevices returns snapshots of devices currently considered online.
func (g *Gateway) OnlineDevices() []registry.Device {
	return g.reg.OnlineDevices()
}

// OfflineDevices returns snapshots of devices whose heartbeat has gone stale.
func (g *Gateway) OfflineDevices() []registry.Device {
	return g.reg.OfflineDevices()
}
