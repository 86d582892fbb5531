package clickhouse

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Client wraps the ClickHouse connection
type Client interface {
	// Conn returns the underlying ClickHouse connection
	Conn() driver.Conn
	// Ping checks the connection to ClickHouse
	Ping(ctx context.Context) error
	// Close closes the connection
	Close() error
}

const maxExecutionTime = "max_execution_time"

const defaultPingTimeout = 10 * time.Second

type client struct {
	conn   driver.Conn
	logger *zap.SugaredLogger
}

// Options translates cfg to driver options.
func Options(cfg Config, sugar *zap.SugaredLogger) *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			maxExecutionTime: cfg.MaxExecutionTime,
		},
		DialTimeout:      time.Duration(cfg.DialTimeout) * time.Second,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Duration(cfg.ConnMaxLifetime) * time.Minute,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: cfg.ClientName, Version: cfg.ClientVersion},
			},
		},
	}
	if cfg.UseTLS {
		opts.TLS = &tls.Config{
			//nolint:gosec // configurable for development clusters with self-signed certificates
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}
	if cfg.Debug && sugar != nil {
		opts.Debugf = func(format string, v ...any) {
			sugar.Debugf(format, v...)
		}
	}
	return opts
}

// New opens a connection and pings it. A client that cannot reach ClickHouse is never returned.
func New(ctx context.Context, cfg Config, sugar *zap.SugaredLogger) (Client, error) {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}

	conn, err := clickhouse.Open(Options(cfg, sugar))
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		var exception *clickhouse.Exception
		if errors.As(err, &exception) {
			sugar.Errorw("failed to ping ClickHouse", "code", exception.Code, "error", exception.Message)
		} else {
			sugar.Errorw("failed to ping ClickHouse", "error", err)
		}
		_ = conn.Close()
		return nil, err
	}

	return NewFromConn(conn, sugar), nil
}

// NewFromConn wraps an existing connection, e.g. a mock in tests.
func NewFromConn(conn driver.Conn, sugar *zap.SugaredLogger) Client {
	return &client{conn: conn, logger: sugar}
}

func (c *client) Conn() driver.Conn {
	return c.conn
}

func (c *client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *client) Close() error {
	return c.conn.Close()
}
