// Package liveness watches for controllers going quiet.
//
// A periodic scan asks the registry which devices crossed the
// online/offline boundary since the last look and hands each
// transition to a callback. The registry derives online state from
// heartbeat age at read time, so the monitor never marks anything
// itself; it only notices and reports the flips.
package liveness

import (
	"sync"
	"time"

	"github.com/lockerfleet/lockgate/internal/registry"
)

// Logger is the minimal logging surface the monitor needs.
type Logger interface {
	Info(msg string, args ...any)
}

// Monitor periodically scans the registry for liveness transitions.
//
// The scan interval comes from configuration, which derives it from
// the heartbeat timeout and enforces the floor.
type Monitor struct {
	reg          *registry.Registry
	interval     time.Duration
	onTransition func(registry.Transition)
	logger       Logger

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a monitor scanning at the given interval. The callback
// receives every transition; it runs on the scan goroutine and should
// not block.
func New(reg *registry.Registry, interval time.Duration, onTransition func(registry.Transition)) *Monitor {
	return &Monitor{
		reg:          reg,
		interval:     interval,
		onTransition: onTransition,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// SetLogger sets a logger for transition reporting. Optional.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the scan loop. Calling Start twice is a no-op, as is
// starting a monitor that was already stopped.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

func (m *Monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.scan()
		}
	}
}

// scan collects and reports boundary crossings since the last scan.
func (m *Monitor) scan() {
	for _, tr := range m.reg.CollectTransitions() {
		if m.logger != nil {
			state := "offline"
			if tr.Online {
				state = "online"
			}
			m.logger.Info("device liveness transition",
				"device", tr.DeviceName,
				"state", state,
			)
		}
		if m.onTransition != nil {
			m.onTransition(tr)
		}
	}
}

// Stop halts the scan loop and waits for it to exit. Safe to call
// before Start or more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	// If the loop never started, close done ourselves so the wait
	// below returns; the consumed Once also prevents a later Start.
	m.startOnce.Do(func() {
		close(m.done)
	})

	<-m.done
}
