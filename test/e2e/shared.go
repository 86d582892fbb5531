//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudpayments-tap/extractor/pkg/clickhouse"
	"github.com/cloudpayments-tap/extractor/pkg/data/clickhouse/bookmark"
)

// verifyBookmark polls ClickHouse until the stream's bookmark reaches expected or times out.
func verifyBookmark(t *testing.T, ctx context.Context, repo bookmark.Repository, stream string, expected time.Time) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		b, exists, err := repo.Read(ctx, stream)
		if err == nil && exists && !b.ReplicationValue.Before(expected) {
			return
		}
		if time.Now().After(deadline) {
			require.NoError(t, err, "read bookmark failed")
			require.True(t, exists, "bookmark missing")
			require.Equal(t, expected.UTC(), b.ReplicationValue.UTC(), "bookmark mismatch")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func getEnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func queryCount(t *testing.T, ctx context.Context, ch clickhouse.Client, query string, args ...any) uint64 {
	t.Helper()
	var cnt uint64
	require.NoError(t, ch.Conn().QueryRow(ctx, query, args...).Scan(&cnt))
	return cnt
}
