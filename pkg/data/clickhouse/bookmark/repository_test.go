package bookmark

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
	"github.com/cloudpayments-tap/extractor/pkg/clickhouse"
	"github.com/cloudpayments-tap/extractor/pkg/clickhouse/mocks"
)

const (
	insertQuery = "INSERT INTO default.bookmarks (stream, replication_value, window_start, page_number, timestamp) VALUES (?, ?, ?, ?, ?)\n"
	selectQuery = "SELECT stream, replication_value, window_start, page_number, timestamp FROM default.bookmarks WHERE stream = ? ORDER BY timestamp DESC, replication_value DESC, window_start DESC, page_number DESC LIMIT 1\n"
)

func createTable(q string) bool {
	return strings.Contains(q, "CREATE TABLE IF NOT EXISTS")
}

func newRepo(t *testing.T, conn *mocks.MockConn, cluster string) *repository {
	t.Helper()
	conn.On("Exec", mock.Anything, mock.MatchedBy(createTable)).Return(nil)
	repo, err := NewRepository(t.Context(), clickhouse.NewFromConn(conn, nil), cluster, "default", "bookmarks")
	require.NoError(t, err)
	r := repo.(*repository)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	return r
}

var (
	replicationValue = time.Date(2023, 1, 2, 13, 4, 5, 0, time.UTC)
	windowStart      = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
)

func TestRepository_Write_Success(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	repo := newRepo(t, conn, "")

	conn.On("Exec", mock.Anything, insertQuery,
		"payments", replicationValue, windowStart, uint32(3), int64(1700000000)).
		Return(nil).Once()

	err := repo.Write(t.Context(), checkpointer.Bookmark{
		Stream:           "payments",
		ReplicationValue: replicationValue,
		WindowStart:      windowStart,
		PageNumber:       3,
	})
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestRepository_Write_ConvertsToUTC(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	repo := newRepo(t, conn, "")

	msk := time.FixedZone("MSK", 3*60*60)
	conn.On("Exec", mock.Anything, insertQuery,
		"payments",
		mock.MatchedBy(func(v time.Time) bool { return v.Location() == time.UTC && v.Equal(replicationValue) }),
		mock.Anything, uint32(1), mock.Anything).
		Return(nil).Once()

	err := repo.Write(t.Context(), checkpointer.Bookmark{
		Stream:           "payments",
		ReplicationValue: replicationValue.In(msk),
		WindowStart:      windowStart.In(msk),
		PageNumber:       1,
	})
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestRepository_Write_Error(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	repo := newRepo(t, conn, "")
	execErr := errors.New("exec failed")

	conn.On("Exec", mock.Anything, insertQuery,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(execErr)

	err := repo.Write(t.Context(), checkpointer.Bookmark{Stream: "payments"})
	require.ErrorIs(t, err, execErr)
}

func TestRepository_Write_RequiresStream(t *testing.T) {
	t.Parallel()
	repo := newRepo(t, &mocks.MockConn{}, "")
	require.Error(t, repo.Write(t.Context(), checkpointer.Bookmark{}))
}

func TestRepository_Read(t *testing.T) {
	t.Parallel()

	scanErr := errors.New("scan failed")
	tests := []struct {
		name       string
		row        mocks.Row
		wantExists bool
		wantErr    error
	}{
		{
			name: "found",
			row: mocks.Row{Values: []any{
				"payments", replicationValue, windowStart, uint32(4), int64(1700000000),
			}},
			wantExists: true,
		},
		{
			name: "no rows",
			row:  mocks.Row{ErrVal: sql.ErrNoRows},
		},
		{
			name:    "scan error",
			row:     mocks.Row{ErrVal: scanErr},
			wantErr: scanErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			conn := &mocks.MockConn{}
			repo := newRepo(t, conn, "")
			conn.On("QueryRow", mock.Anything, selectQuery, "payments").Return(tt.row).Once()

			got, exists, err := repo.Read(t.Context(), "payments")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExists, exists)
			if !tt.wantExists {
				assert.Zero(t, got)
				return
			}
			assert.Equal(t, checkpointer.Bookmark{
				Stream:           "payments",
				ReplicationValue: replicationValue,
				WindowStart:      windowStart,
				PageNumber:       4,
				Timestamp:        1700000000,
			}, got)
			conn.AssertExpectations(t)
		})
	}
}

func TestRepository_Initialize_SingleNode(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	conn.On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
		return createTable(q) && strings.Contains(q, "default.bookmarks") &&
			strings.Contains(q, "ReplacingMergeTree(timestamp)") && !strings.Contains(q, "ON CLUSTER")
	})).Return(nil).Once()

	_, err := NewRepository(t.Context(), clickhouse.NewFromConn(conn, nil), "", "default", "bookmarks")
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestRepository_Initialize_Cluster(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	conn.On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "default.bookmarks_local ON CLUSTER main") &&
			strings.Contains(q, "'/clickhouse/tables/{shard}/default/bookmarks_local'")
	})).Return(nil).Once()
	conn.On("Exec", mock.Anything, mock.MatchedBy(func(q string) bool {
		return strings.Contains(q, "Distributed(main, default, bookmarks_local, cityHash64(stream))")
	})).Return(nil).Once()

	_, err := NewRepository(t.Context(), clickhouse.NewFromConn(conn, nil), "main", "default", "bookmarks")
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestRepository_Initialize_Error(t *testing.T) {
	t.Parallel()
	conn := &mocks.MockConn{}
	ddlErr := errors.New("ddl failed")
	conn.On("Exec", mock.Anything, mock.Anything).Return(ddlErr)

	repo, err := NewRepository(t.Context(), clickhouse.NewFromConn(conn, nil), "", "default", "bookmarks")
	require.ErrorIs(t, err, ddlErr)
	assert.Nil(t, repo)
}

func TestNewRepository_RejectsInvalidIdentifiers(t *testing.T) {
	t.Parallel()
	client := clickhouse.NewFromConn(&mocks.MockConn{}, nil)

	_, err := NewRepository(t.Context(), client, "", "default", "bookmarks; DROP TABLE x")
	require.ErrorContains(t, err, "invalid identifier")
	_, err = NewRepository(t.Context(), client, "", "", "bookmarks")
	require.ErrorContains(t, err, "invalid identifier")
	_, err = NewRepository(t.Context(), client, "main-cluster", "default", "bookmarks")
	require.ErrorContains(t, err, "invalid cluster")
}

func TestRepository_DeleteBookmarks(t *testing.T) {
	t.Parallel()

	t.Run("single node", func(t *testing.T) {
		t.Parallel()
		conn := &mocks.MockConn{}
		repo := newRepo(t, conn, "")
		conn.On("Exec", mock.Anything, "DELETE FROM default.bookmarks WHERE stream = ?\n", "payments").Return(nil).Once()

		require.NoError(t, repo.DeleteBookmarks(t.Context(), "payments"))
		conn.AssertExpectations(t)
	})

	t.Run("cluster", func(t *testing.T) {
		t.Parallel()
		conn := &mocks.MockConn{}
		repo := newRepo(t, conn, "main")
		conn.On("Exec", mock.Anything, "ALTER TABLE default.bookmarks_local ON CLUSTER main DELETE WHERE stream = ?\n", "payments").
			Return(nil).Once()

		require.NoError(t, repo.DeleteBookmarks(t.Context(), "payments"))
		conn.AssertExpectations(t)
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()
		conn := &mocks.MockConn{}
		repo := newRepo(t, conn, "")
		delErr := errors.New("delete failed")
		conn.On("Exec", mock.Anything, "DELETE FROM default.bookmarks WHERE stream = ?\n", "payments").Return(delErr)

		require.ErrorIs(t, repo.DeleteBookmarks(t.Context(), "payments"), delErr)
	})
}
