package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the locker gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	Broker   BrokerConfig   `yaml:"broker"`
	Topics   TopicsConfig   `yaml:"topics"`
	Audit    AuditConfig    `yaml:"audit"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig contains the core timing parameters of the gateway.
type GatewayConfig struct {
	// HeartbeatTimeout is how long (seconds) a device may go without a
	// heartbeat before it is considered offline. Default: 300.
	HeartbeatTimeout int `yaml:"heartbeat_timeout"`

	// UnlockDelay is the delay (seconds) between an allowed access event
	// and the openlock command being published. Default: 10.
	UnlockDelay int `yaml:"unlock_delay"`

	// LivenessInterval overrides the liveness scan interval (seconds).
	// 0 derives it from HeartbeatTimeout/3 with a 5 second floor.
	LivenessInterval int `yaml:"liveness_interval"`
}

// BrokerMode selects the broker adapter variant.
type BrokerMode string

// Broker mode constants.
const (
	// BrokerModeBuiltIn runs the in-process broker; no external broker
	// is required.
	BrokerModeBuiltIn BrokerMode = "built-in"

	// BrokerModeExternal connects to an externally hosted MQTT broker.
	BrokerModeExternal BrokerMode = "external"
)

// BrokerConfig contains message bus settings.
type BrokerConfig struct {
	Mode BrokerMode `yaml:"mode"`

	// Persistence enables message persistence in the built-in broker.
	// It has no effect on gateway logic beyond broker selection.
	Persistence bool `yaml:"persistence"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`

	Auth BrokerAuthConfig `yaml:"auth"`

	QoS int `yaml:"qos"`

	Reconnect ReconnectConfig `yaml:"reconnect"`

	// QueueSize bounds the number of publishes buffered while the broker
	// connection is down. Further publishes fail explicitly. Default: 256.
	QueueSize int `yaml:"queue_size"`
}

// BrokerAuthConfig contains broker authentication credentials.
type BrokerAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReconnectConfig contains reconnection backoff settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// TopicsConfig contains the topic namespace settings.
type TopicsConfig struct {
	// Base is the first segment of every gateway topic. Default: "lockers".
	Base string `yaml:"base"`
}

// AuditConfig contains the local audit sink settings.
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LOCKGATE_SECTION_KEY
// For example: LOCKGATE_BROKER_HOST, LOCKGATE_AUDIT_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			HeartbeatTimeout: 300,
			UnlockDelay:      10,
		},
		Broker: BrokerConfig{
			Mode:     BrokerModeBuiltIn,
			Host:     "localhost",
			Port:     1883,
			ClientID: "lockgate",
			QoS:      1,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			QueueSize: 256,
		},
		Topics: TopicsConfig{
			Base: "lockers",
		},
		Audit: AuditConfig{
			Enabled:     true,
			Path:        "./data/lockgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LOCKGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Broker
	if v := os.Getenv("LOCKGATE_BROKER_MODE"); v != "" {
		cfg.Broker.Mode = BrokerMode(v)
	}
	if v := os.Getenv("LOCKGATE_BROKER_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("LOCKGATE_BROKER_USERNAME"); v != "" {
		cfg.Broker.Auth.Username = v
	}
	if v := os.Getenv("LOCKGATE_BROKER_PASSWORD"); v != "" {
		cfg.Broker.Auth.Password = v
	}

	// Gateway timing
	if v := os.Getenv("LOCKGATE_HEARTBEAT_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.HeartbeatTimeout = n
		}
	}
	if v := os.Getenv("LOCKGATE_UNLOCK_DELAY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.UnlockDelay = n
		}
	}

	// Audit
	if v := os.Getenv("LOCKGATE_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}

	// InfluxDB
	if v := os.Getenv("LOCKGATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Broker.Mode != BrokerModeBuiltIn && c.Broker.Mode != BrokerModeExternal {
		errs = append(errs, fmt.Sprintf("broker.mode must be %q or %q", BrokerModeBuiltIn, BrokerModeExternal))
	}
	if c.Broker.Mode == BrokerModeExternal {
		if c.Broker.Host == "" {
			errs = append(errs, "broker.host is required for external mode")
		}
		if c.Broker.Port < 1 || c.Broker.Port > 65535 {
			errs = append(errs, "broker.port must be between 1 and 65535")
		}
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, "broker.qos must be 0, 1, or 2")
	}
	if c.Broker.QueueSize < 0 {
		errs = append(errs, "broker.queue_size must not be negative")
	}

	if c.Gateway.HeartbeatTimeout <= 0 {
		errs = append(errs, "gateway.heartbeat_timeout must be positive")
	}
	if c.Gateway.UnlockDelay < 0 {
		errs = append(errs, "gateway.unlock_delay must not be negative")
	}

	if c.Topics.Base == "" {
		errs = append(errs, "topics.base is required")
	}

	if c.Audit.Enabled && c.Audit.Path == "" {
		errs = append(errs, "audit.path is required when audit is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set LOCKGATE_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HeartbeatTimeout returns the heartbeat timeout as a Duration.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Gateway.HeartbeatTimeout) * time.Second
}

// UnlockDelay returns the unlock delay as a Duration.
func (c *Config) UnlockDelay() time.Duration {
	return time.Duration(c.Gateway.UnlockDelay) * time.Second
}

// LivenessInterval returns the liveness scan interval as a Duration.
//
// If not explicitly configured it is derived from the heartbeat timeout
// (timeout/3) with a 5 second floor.
func (c *Config) LivenessInterval() time.Duration {
	if c.Gateway.LivenessInterval > 0 {
		return time.Duration(c.Gateway.LivenessInterval) * time.Second
	}
	derived := c.HeartbeatTimeout() / 3
	if derived < 5*time.Second {
		derived = 5 * time.Second
	}
	return derived
}
