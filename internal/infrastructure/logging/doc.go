// Package logging provides structured logging for the locker gateway.
//
// It wraps the standard library's log/slog with configuration-driven
// format and level selection plus default service fields. Domain packages
// do not import this package directly; they declare a small Logger
// interface that *logging.Logger satisfies, keeping them decoupled from
// the logging implementation.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("gateway started", "broker_mode", cfg.Broker.Mode)
package logging
