package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/ledger-notify/internal/config"
)

// ApplicationName is reported to the server as application_name.
const ApplicationName = "ledger-notify"

// BuildConnString builds a PostgreSQL connection URL from config.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}

	query := url.Values{}
	query.Set("application_name", ApplicationName)
	query.Set("sslmode", sslMode)

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		port,
		cfg.Name,
		query.Encode(),
	)
}
