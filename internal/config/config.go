package config

import "time"

// Config is the root configuration for a notifyd instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Store    StoreConfig    `yaml:"store"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Notify   NotifyConfig   `yaml:"notify"`
	Relay    RelayConfig    `yaml:"relay"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID     string `yaml:"id"`
	Region string `yaml:"region"`
}

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
)

// StoreConfig selects and configures the object store.
type StoreConfig struct {
	Backend  string       `yaml:"backend"` // memory, pebble or postgres
	Pebble   PebbleConfig `yaml:"pebble"`
	Postgres DBConfig     `yaml:"postgres"`
}

// PebbleConfig holds the embedded store settings.
type PebbleConfig struct {
	Dir string `yaml:"dir"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// IngestConfig holds the Kafka consumer that feeds applied blocks into the ledger.
type IngestConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Brokers  []string      `yaml:"brokers"`
	Topic    string        `yaml:"topic"`
	GroupID  string        `yaml:"group_id"`
	MinBytes int           `yaml:"min_bytes"`
	MaxBytes int           `yaml:"max_bytes"`
	MaxWait  time.Duration `yaml:"max_wait"`
}

// GatewayConfig holds the WebSocket API settings.
type GatewayConfig struct {
	Listen         string        `yaml:"listen"`
	Path           string        `yaml:"path"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	Users          []UserConfig  `yaml:"users"` // empty disables login
}

// UserConfig is a gateway login. PasswordHash is a bcrypt hash.
type UserConfig struct {
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"`
}

// NotifyConfig holds broadcast engine settings.
type NotifyConfig struct {
	MaxConcurrentDeliveries int           `yaml:"max_concurrent_deliveries"`
	DeliveryTimeout         time.Duration `yaml:"delivery_timeout"` // 0 = none
	IntakeCapacity          int           `yaml:"intake_capacity"`
}

// RelayConfig holds static subscriptions republished to Kafka.
type RelayConfig struct {
	Enabled bool                `yaml:"enabled"`
	Brokers []string            `yaml:"brokers"`
	Topic   string              `yaml:"topic"`
	Objects []string            `yaml:"objects"` // object ids, e.g. "1.2.15"
	Markets []MarketRelayConfig `yaml:"markets"`
}

// MarketRelayConfig names one market by its two asset ids.
type MarketRelayConfig struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds log output settings. File enables rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
