package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: notify-1
  region: eu-west-1
store:
  backend: postgres
  postgres:
    host: localhost
    port: 5432
    name: ledger
    user: testuser
    password: testpass
gateway:
  listen: ":9000"
  users:
    - name: alice
      password_hash: "$2a$04$abc"
relay:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  objects: ["1.2.15"]
  markets:
    - a: "1.3.0"
      b: "1.3.1"
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "notify-1" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "notify-1")
	}
	if cfg.Store.Backend != BackendPostgres {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendPostgres)
	}
	if cfg.Store.Postgres.Host != "localhost" {
		t.Errorf("Store.Postgres.Host = %q, want %q", cfg.Store.Postgres.Host, "localhost")
	}
	if cfg.Gateway.Listen != ":9000" {
		t.Errorf("Gateway.Listen = %q, want %q", cfg.Gateway.Listen, ":9000")
	}
	if len(cfg.Gateway.Users) != 1 || cfg.Gateway.Users[0].Name != "alice" {
		t.Fatalf("Gateway.Users = %+v, want one user alice", cfg.Gateway.Users)
	}
	if cfg.Gateway.Users[0].PasswordHash != "$2a$04$abc" {
		t.Errorf("PasswordHash = %q, want %q", cfg.Gateway.Users[0].PasswordHash, "$2a$04$abc")
	}
	if len(cfg.Relay.Brokers) != 2 {
		t.Errorf("len(Relay.Brokers) = %d, want 2", len(cfg.Relay.Brokers))
	}
	if len(cfg.Relay.Markets) != 1 || cfg.Relay.Markets[0].B != "1.3.1" {
		t.Errorf("Relay.Markets = %+v, want one market 1.3.0/1.3.1", cfg.Relay.Markets)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: notify-1
store:
  backend: postgres
  postgres:
    host: localhost
    name: ledger
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Store.Postgres.Password != "secret123" {
		t.Errorf("Store.Postgres.Password = %q, want %q", cfg.Store.Postgres.Password, "secret123")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("NOTIFY_TOPIC", "blocks")

	tests := []struct {
		in   string
		want string
	}{
		{"topic: ${NOTIFY_TOPIC}", "topic: blocks"},
		{"topic: ${NOTIFY_UNSET_VAR}", "topic: "},
		{"hash: $2a$10$NOTIFY_TOPIC", "hash: $2a$10$NOTIFY_TOPIC"},
		{"price: $5", "price: $5"},
	}
	for _, tt := range tests {
		if got := expandEnv(tt.in); got != tt.want {
			t.Errorf("expandEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("error = %q, want read config file prefix", err.Error())
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: notify-1
store:
  backend: postgres
  postgres:
    host: localhost
    name: ledger
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Store.Postgres.Port != DefaultDBPort {
		t.Errorf("Store.Postgres.Port = %d, want default %d", cfg.Store.Postgres.Port, DefaultDBPort)
	}
	if cfg.Store.Postgres.MaxConns != DefaultMaxConns {
		t.Errorf("Store.Postgres.MaxConns = %d, want default %d", cfg.Store.Postgres.MaxConns, DefaultMaxConns)
	}
	if cfg.Gateway.PingInterval != DefaultPingInterval {
		t.Errorf("Gateway.PingInterval = %v, want default %v", cfg.Gateway.PingInterval, DefaultPingInterval)
	}
	if cfg.Notify.MaxConcurrentDeliveries != DefaultMaxConcurrentDeliveries {
		t.Errorf("Notify.MaxConcurrentDeliveries = %d, want default %d", cfg.Notify.MaxConcurrentDeliveries, DefaultMaxConcurrentDeliveries)
	}
	if cfg.Notify.DeliveryTimeout != 0 {
		t.Errorf("Notify.DeliveryTimeout = %v, want 0", cfg.Notify.DeliveryTimeout)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want default %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: notify-1\n")

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendMemory)
	}

	path = writeTempFile(t, "store:\n  backend: memory\n")
	if _, err := LoadAndValidate(path); err == nil || !strings.HasPrefix(err.Error(), "validate config: ") {
		t.Errorf("LoadAndValidate() error = %v, want validate config error", err)
	}
}

func TestLoadAndValidate_ExampleFile(t *testing.T) {
	t.Setenv("NOTIFY_DB_PASSWORD", "secret")

	cfg, err := LoadAndValidate("../../configs/notifyd.example.yaml")
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Store.Backend != BackendPebble {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendPebble)
	}
	if cfg.Store.Postgres.Password != "secret" {
		t.Errorf("Postgres.Password = %q, want %q", cfg.Store.Postgres.Password, "secret")
	}
	if len(cfg.Relay.Markets) != 1 || cfg.Relay.Markets[0].A != "1.3.0" {
		t.Errorf("Relay.Markets = %v, want one market", cfg.Relay.Markets)
	}
}

func TestValidate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "redis" },
			wantErr: `store.backend must be one of memory, pebble, postgres, got "redis"`,
		},
		{
			name:    "pebble without dir",
			mutate:  func(c *Config) { c.Store.Backend = BackendPebble },
			wantErr: "store.pebble.dir is required",
		},
		{
			name: "missing postgres password",
			mutate: func(c *Config) {
				c.Store.Backend = BackendPostgres
				c.Store.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 5}
			},
			wantErr: "store.postgres.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Store.Backend = BackendPostgres
				c.Store.Postgres = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "store.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "ingest without topic",
			mutate:  func(c *Config) { c.Ingest = IngestConfig{Enabled: true, Brokers: []string{"k:9092"}} },
			wantErr: "ingest.topic is required",
		},
		{
			name:    "read timeout below ping interval",
			mutate:  func(c *Config) { c.Gateway.ReadTimeout = time.Second },
			wantErr: "gateway.read_timeout (1s) must exceed ping_interval (15s)",
		},
		{
			name:    "user without name",
			mutate:  func(c *Config) { c.Gateway.Users = []UserConfig{{PasswordHash: string(hash)}} },
			wantErr: "gateway.users[0].name is required",
		},
		{
			name: "relay with bad market",
			mutate: func(c *Config) {
				c.Relay.Enabled = true
				c.Relay.Brokers = []string{"k:9092"}
				c.Relay.Markets = []MarketRelayConfig{{A: "1.3.0", B: "usd"}}
			},
			wantErr: `relay.markets[0]: b: invalid object id: "usd"`,
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
		{
			name: "valid config",
			mutate: func(c *Config) {
				c.Gateway.Users = []UserConfig{{Name: "alice", PasswordHash: string(hash)}}
				c.Relay.Enabled = true
				c.Relay.Brokers = []string{"k:9092"}
				c.Relay.Objects = []string{"1.2.15"}
				c.Relay.Markets = []MarketRelayConfig{{A: "1.3.0", B: "1.3.1"}}
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Instance: InstanceConfig{ID: "test"}}
			cfg.applyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestMarketRelayConfig_Pair(t *testing.T) {
	pair, err := MarketRelayConfig{A: "1.3.0", B: "1.3.1"}.Pair()
	if err != nil {
		t.Fatalf("Pair() error = %v", err)
	}
	if pair.String() != "1.3.0:1.3.1" {
		t.Errorf("Pair() = %q, want %q", pair.String(), "1.3.0:1.3.1")
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
