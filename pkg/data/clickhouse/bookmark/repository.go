// Package bookmark stores extraction bookmarks in ClickHouse.
package bookmark

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
	"github.com/cloudpayments-tap/extractor/pkg/clickhouse"
)

// Repository persists bookmarks in ClickHouse and adds maintenance operations on top of
// checkpointer.Checkpointer.
type Repository interface {
	checkpointer.Checkpointer
	DeleteBookmarks(ctx context.Context, stream string) error
}

var _ Repository = (*repository)(nil)

//go:embed queries/create-table.sql
var createTableQuery string

//go:embed queries/create-table-local.sql
var createTableLocalQuery string

//go:embed queries/create-table-distributed.sql
var createTableDistributedQuery string

//go:embed queries/write-bookmark.sql
var writeBookmarkQuery string

//go:embed queries/read-bookmark.sql
var readBookmarkQuery string

//go:embed queries/delete-bookmarks.sql
var deleteBookmarksQuery string

//go:embed queries/delete-bookmarks-cluster.sql
var deleteBookmarksClusterQuery string

// identifiers are interpolated into DDL, so only plain names are accepted.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type repository struct {
	client    clickhouse.Client
	cluster   string
	database  string
	tableName string
	now       func() time.Time
}

// NewRepository validates the names and creates the bookmarks table if needed. An empty
// cluster uses a single-node table.
func NewRepository(
	ctx context.Context,
	client clickhouse.Client,
	cluster, database, tableName string,
) (Repository, error) {
	for _, name := range []string{database, tableName} {
		if !identifier.MatchString(name) {
			return nil, fmt.Errorf("invalid identifier %q", name)
		}
	}
	if cluster != "" && !identifier.MatchString(cluster) {
		return nil, fmt.Errorf("invalid cluster name %q", cluster)
	}

	repo := &repository{
		client:    client,
		cluster:   cluster,
		database:  database,
		tableName: tableName,
		now:       time.Now,
	}
	if err := repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to create bookmarks table: %w", err)
	}
	return repo, nil
}

// Initialize ensures the bookmarks table exists.
// Schema:
//   - stream: String (sorting key)
//   - replication_value, window_start: DateTime64(3, 'UTC')
//   - page_number: UInt32
//   - timestamp: Int64 (ReplacingMergeTree version column)
func (r *repository) Initialize(ctx context.Context) error {
	if r.cluster == "" {
		query := fmt.Sprintf(createTableQuery, r.database, r.tableName)
		if err := r.client.Conn().Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to create bookmarks table: %w", err)
		}
		return nil
	}

	query := fmt.Sprintf(createTableLocalQuery, r.database, r.tableName, r.cluster, r.database, r.tableName)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create bookmarks local table: %w", err)
	}

	query = fmt.Sprintf(createTableDistributedQuery,
		r.database, r.tableName, r.cluster, r.database, r.tableName,
		r.cluster, r.database, r.tableName)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create bookmarks distributed table: %w", err)
	}
	return nil
}

// Write stores b stamped with the current unix time.
func (r *repository) Write(ctx context.Context, b checkpointer.Bookmark) error {
	if b.Stream == "" {
		return errors.New("bookmark stream is required")
	}
	b.Timestamp = r.now().Unix()
	row := toRow(b)

	query := fmt.Sprintf(writeBookmarkQuery, r.database, r.tableName)
	err := r.client.Conn().Exec(ctx, query,
		row.Stream, row.ReplicationValue, row.WindowStart, row.PageNumber, row.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to write bookmark: %w", err)
	}
	return nil
}

// Read returns the latest bookmark of stream.
func (r *repository) Read(ctx context.Context, stream string) (checkpointer.Bookmark, bool, error) {
	var row Row
	query := fmt.Sprintf(readBookmarkQuery, r.database, r.tableName)
	err := r.client.Conn().
		QueryRow(ctx, query, stream).
		Scan(&row.Stream, &row.ReplicationValue, &row.WindowStart, &row.PageNumber, &row.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return checkpointer.Bookmark{}, false, nil
		}
		return checkpointer.Bookmark{}, false, fmt.Errorf("failed to read bookmark: %w", err)
	}
	return row.bookmark(), true, nil
}

// DeleteBookmarks removes every stored bookmark of stream.
func (r *repository) DeleteBookmarks(ctx context.Context, stream string) error {
	query := fmt.Sprintf(deleteBookmarksQuery, r.database, r.tableName)
	if r.cluster != "" {
		query = fmt.Sprintf(deleteBookmarksClusterQuery, r.database, r.tableName, r.cluster)
	}
	if err := r.client.Conn().Exec(ctx, query, stream); err != nil {
		return fmt.Errorf("failed to delete bookmarks: %w", err)
	}
	return nil
}
