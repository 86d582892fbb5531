// Package testutils starts a disposable ClickHouse server for integration tests.
package testutils

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cloudpayments-tap/extractor/pkg/clickhouse"
)

const (
	image          = "clickhouse/clickhouse-server:24.8"
	nativePort     = "9000/tcp"
	startupTimeout = 60 * time.Second
)

// StartClickHouse runs a single-node ClickHouse container and returns a config pointing at it.
// The container is terminated when the test ends.
func StartClickHouse(t *testing.T) clickhouse.Config {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{nativePort},
		Env: map[string]string{
			"CLICKHOUSE_USER":                      "default",
			"CLICKHOUSE_PASSWORD":                  "test",
			"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1",
		},
		WaitingFor: wait.ForListeningPort(nativePort).WithStartupTimeout(startupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate ClickHouse container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nativePort)
	require.NoError(t, err)

	return clickhouse.Config{
		Hosts:            []string{fmt.Sprintf("%s:%s", host, port.Port())},
		Database:         "default",
		Username:         "default",
		Password:         "test",
		MaxExecutionTime: 60,
		DialTimeout:      10,
		MaxOpenConns:     2,
		MaxIdleConns:     2,
		ConnMaxLifetime:  10,
		ClientName:       "cloudpayments-extractor-test",
		ClientVersion:    "test",
	}
}
