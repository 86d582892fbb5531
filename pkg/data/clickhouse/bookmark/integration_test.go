//go:build integration

package bookmark_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
	"github.com/cloudpayments-tap/extractor/pkg/clickhouse"
	"github.com/cloudpayments-tap/extractor/pkg/clickhouse/testutils"
	"github.com/cloudpayments-tap/extractor/pkg/data/clickhouse/bookmark"
)

func TestRepository_RoundTrip(t *testing.T) {
	cfg := testutils.StartClickHouse(t)
	client, err := clickhouse.New(t.Context(), cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo, err := bookmark.NewRepository(t.Context(), client, "", cfg.Database, "bookmarks")
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(t.Context()), "initialize is idempotent")

	_, exists, err := repo.Read(t.Context(), "payments")
	require.NoError(t, err)
	assert.False(t, exists)

	first := checkpointer.Bookmark{
		Stream:           "payments",
		ReplicationValue: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		WindowStart:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		PageNumber:       2,
	}
	second := first
	second.ReplicationValue = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	second.WindowStart = second.ReplicationValue
	second.PageNumber = 1

	require.NoError(t, repo.Write(t.Context(), first))
	require.NoError(t, repo.Write(t.Context(), second))

	got, exists, err := repo.Read(t.Context(), "payments")
	require.NoError(t, err)
	require.True(t, exists)
	assert.True(t, second.ReplicationValue.Equal(got.ReplicationValue))
	assert.True(t, second.WindowStart.Equal(got.WindowStart))
	assert.Equal(t, 1, got.PageNumber)
	assert.NotZero(t, got.Timestamp)

	require.NoError(t, repo.DeleteBookmarks(t.Context(), "payments"))
	_, exists, err = repo.Read(t.Context(), "payments")
	require.NoError(t, err)
	assert.False(t, exists)
}
