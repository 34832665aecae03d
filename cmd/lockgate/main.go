// Lockgate - Locker Controller Gateway
//
// This is the main entry point for the lockgate service. Lockgate sits
// between a fleet of RFID locker controllers and the systems that
// manage them: controllers self-register through heartbeats, scans are
// evaluated into access decisions with delayed unlocks, and device
// liveness is tracked and published as events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lockerfleet/lockgate/internal/audit"
	"github.com/lockerfleet/lockgate/internal/gateway"
	"github.com/lockerfleet/lockgate/internal/infrastructure/bus"
	"github.com/lockerfleet/lockgate/internal/infrastructure/config"
	"github.com/lockerfleet/lockgate/internal/infrastructure/database"
	"github.com/lockerfleet/lockgate/internal/infrastructure/influxdb"
	"github.com/lockerfleet/lockgate/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// healthCheckTimeout bounds the startup health check.
const healthCheckTimeout = 10 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting lockgate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the audit trail (optional)
	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Audit.Path,
			WALMode:     cfg.Audit.WALMode,
			BusyTimeout: cfg.Audit.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening audit database: %w", dbErr)
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()

		auditStore, err = audit.NewStore(db)
		if err != nil {
			return fmt.Errorf("preparing audit trail: %w", err)
		}
		log.Info("audit trail ready", "path", cfg.Audit.Path)
	} else {
		log.Info("audit trail disabled")
	}

	// Select the broker variant
	topics := bus.Topics{Base: cfg.Topics.Base}
	var transport bus.Bus
	switch cfg.Broker.Mode {
	case config.BrokerModeBuiltIn:
		embedded := bus.NewEmbedded()
		embedded.SetLogger(log)
		transport = embedded
		log.Info("embedded broker started")
	case config.BrokerModeExternal:
		client, connErr := bus.Connect(cfg.Broker, topics)
		if connErr != nil {
			return fmt.Errorf("connecting to broker: %w", connErr)
		}
		client.SetLogger(log)
		client.SetOnConnect(func() {
			log.Info("broker reconnected")
		})
		client.SetOnDisconnect(func(err error) {
			log.Warn("broker disconnected", "error", err)
		})
		transport = client
		log.Info("broker connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"client_id", cfg.Broker.ClientID,
		)
	default:
		return fmt.Errorf("unknown broker mode %q", cfg.Broker.Mode)
	}
	defer func() {
		log.Info("closing broker connection")
		if closeErr := transport.Close(); closeErr != nil {
			log.Error("error closing broker connection", "error", closeErr)
		}
	}()

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assemble and start the gateway
	gw := gateway.New(gateway.Options{
		Config:    cfg,
		Logger:    log,
		Bus:       transport,
		Audit:     auditStore,
		Telemetry: influxClient,
	})
	if err := gw.Start(); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}
	defer gw.Stop()

	// Verify the transport is healthy before declaring readiness
	checkCtx, checkCancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer checkCancel()
	if err := gw.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Gateway (monitor and pending unlocks)
	// 2. InfluxDB (if enabled)
	// 3. Broker connection
	// 4. Audit database (if enabled)

	log.Info("lockgate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LOCKGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LOCKGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
