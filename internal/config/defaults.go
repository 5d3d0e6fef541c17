package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBackend                 = BackendMemory
	DefaultPebbleDir               = "data/objects"
	DefaultDBPort                  = 5432
	DefaultDBSSLMode               = "prefer"
	DefaultMaxConns                = 10
	DefaultMinConns                = 2
	DefaultIngestGroupID           = "ledger-notify"
	DefaultIngestMinBytes          = 1
	DefaultIngestMaxBytes          = 10 << 20
	DefaultIngestMaxWait           = 500 * time.Millisecond
	DefaultGatewayListen           = ":8090"
	DefaultGatewayPath             = "/ws"
	DefaultPingInterval            = 15 * time.Second
	DefaultReadTimeout             = 45 * time.Second
	DefaultWriteTimeout            = 10 * time.Second
	DefaultSendBuffer              = 256
	DefaultMaxMessageSize          = 1 << 20
	DefaultMaxConcurrentDeliveries = 64
	DefaultIntakeCapacity          = 16
	DefaultRelayTopic              = "ledger-notifications"
	DefaultMetricsPort             = 9090
	DefaultMetricsPath             = "/metrics"
	DefaultLogLevel                = "info"
	DefaultLogFormat               = "text"
	DefaultLogMaxSizeMB            = 100
	DefaultLogMaxBackups           = 5
	DefaultLogMaxAgeDays           = 28
)

func (c *Config) applyDefaults() {
	// Store defaults
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultBackend
	}
	if c.Store.Backend == BackendPebble && c.Store.Pebble.Dir == "" {
		c.Store.Pebble.Dir = DefaultPebbleDir
	}
	if c.Store.Backend == BackendPostgres {
		applyDBDefaults(&c.Store.Postgres)
	}

	// Ingest defaults
	if c.Ingest.GroupID == "" {
		c.Ingest.GroupID = DefaultIngestGroupID
	}
	if c.Ingest.MinBytes == 0 {
		c.Ingest.MinBytes = DefaultIngestMinBytes
	}
	if c.Ingest.MaxBytes == 0 {
		c.Ingest.MaxBytes = DefaultIngestMaxBytes
	}
	if c.Ingest.MaxWait == 0 {
		c.Ingest.MaxWait = DefaultIngestMaxWait
	}

	// Gateway defaults
	if c.Gateway.Listen == "" {
		c.Gateway.Listen = DefaultGatewayListen
	}
	if c.Gateway.Path == "" {
		c.Gateway.Path = DefaultGatewayPath
	}
	if c.Gateway.PingInterval == 0 {
		c.Gateway.PingInterval = DefaultPingInterval
	}
	if c.Gateway.ReadTimeout == 0 {
		c.Gateway.ReadTimeout = DefaultReadTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.SendBuffer == 0 {
		c.Gateway.SendBuffer = DefaultSendBuffer
	}
	if c.Gateway.MaxMessageSize == 0 {
		c.Gateway.MaxMessageSize = DefaultMaxMessageSize
	}

	// Notify defaults
	if c.Notify.MaxConcurrentDeliveries == 0 {
		c.Notify.MaxConcurrentDeliveries = DefaultMaxConcurrentDeliveries
	}
	if c.Notify.IntakeCapacity == 0 {
		c.Notify.IntakeCapacity = DefaultIntakeCapacity
	}

	// Relay defaults
	if c.Relay.Topic == "" {
		c.Relay.Topic = DefaultRelayTopic
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
