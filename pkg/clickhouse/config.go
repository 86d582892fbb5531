package clickhouse

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for a ClickHouse client. Only bookmarks are stored, so the
// connection pool is kept small.
type Config struct {
	Hosts    []string `env:"CLICKHOUSE_HOSTS" envSeparator:"," envDefault:"localhost:9000"`
	Database string   `env:"CLICKHOUSE_DATABASE" envDefault:"default"`
	Username string   `env:"CLICKHOUSE_USERNAME" envDefault:"default"`
	Password string   `env:"CLICKHOUSE_PASSWORD" envDefault:""`
	// Cluster enables ON CLUSTER DDL with a Distributed table over a replicated local table.
	// Empty means a single node.
	Cluster            string `env:"CLICKHOUSE_CLUSTER" envDefault:""`
	Debug              bool   `env:"CLICKHOUSE_DEBUG" envDefault:"false"`
	UseTLS             bool   `env:"CLICKHOUSE_USE_TLS" envDefault:"false"`
	InsecureSkipVerify bool   `env:"CLICKHOUSE_INSECURE_SKIP_VERIFY" envDefault:"false"`
	MaxExecutionTime   int    `env:"CLICKHOUSE_MAX_EXECUTION_TIME" envDefault:"60"` // seconds
	DialTimeout        int    `env:"CLICKHOUSE_DIAL_TIMEOUT" envDefault:"30"`       // seconds
	MaxOpenConns       int    `env:"CLICKHOUSE_MAX_OPEN_CONNS" envDefault:"2"`
	MaxIdleConns       int    `env:"CLICKHOUSE_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxLifetime    int    `env:"CLICKHOUSE_CONN_MAX_LIFETIME" envDefault:"10"` // minutes
	ClientName         string `env:"CLICKHOUSE_CLIENT_NAME" envDefault:"cloudpayments-extractor"`
	ClientVersion      string `env:"CLICKHOUSE_CLIENT_VERSION" envDefault:"1.0"`
}

// Load reads the ClickHouse configuration from environment variables.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse clickhouse config: %w", err)
	}
	return cfg, nil
}
