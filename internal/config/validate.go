package config

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/rickgao/ledger-notify/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Store.Pebble.Dir == "" {
			return errors.New("store.pebble.dir is required")
		}
	case BackendPostgres:
		if err := c.Store.Postgres.validate("store.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, pebble, postgres, got %q", c.Store.Backend)
	}

	if c.Ingest.Enabled {
		if len(c.Ingest.Brokers) == 0 {
			return errors.New("ingest.brokers is required")
		}
		if c.Ingest.Topic == "" {
			return errors.New("ingest.topic is required")
		}
	}

	if c.Gateway.Listen == "" {
		return errors.New("gateway.listen is required")
	}
	if c.Gateway.SendBuffer < 1 {
		return errors.New("gateway.send_buffer must be >= 1")
	}
	if c.Gateway.ReadTimeout <= c.Gateway.PingInterval {
		return fmt.Errorf("gateway.read_timeout (%s) must exceed ping_interval (%s)", c.Gateway.ReadTimeout, c.Gateway.PingInterval)
	}
	for i, u := range c.Gateway.Users {
		if u.Name == "" {
			return fmt.Errorf("gateway.users[%d].name is required", i)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return fmt.Errorf("gateway.users[%d].password_hash: %w", i, err)
		}
	}

	if c.Notify.MaxConcurrentDeliveries < 1 {
		return errors.New("notify.max_concurrent_deliveries must be >= 1")
	}
	if c.Notify.DeliveryTimeout < 0 {
		return errors.New("notify.delivery_timeout must be >= 0")
	}

	if c.Relay.Enabled {
		if len(c.Relay.Brokers) == 0 {
			return errors.New("relay.brokers is required")
		}
		for i, s := range c.Relay.Objects {
			if _, err := model.ParseObjectID(s); err != nil {
				return fmt.Errorf("relay.objects[%d]: %w", i, err)
			}
		}
		for i, m := range c.Relay.Markets {
			if _, err := m.Pair(); err != nil {
				return fmt.Errorf("relay.markets[%d]: %w", i, err)
			}
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// Pair parses the market's asset ids.
func (m MarketRelayConfig) Pair() (model.AssetPair, error) {
	a, err := model.ParseObjectID(m.A)
	if err != nil {
		return model.AssetPair{}, fmt.Errorf("a: %w", err)
	}
	b, err := model.ParseObjectID(m.B)
	if err != nil {
		return model.AssetPair{}, fmt.Errorf("b: %w", err)
	}
	return model.NewAssetPair(a, b), nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
