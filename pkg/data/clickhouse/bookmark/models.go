package bookmark

import (
	"time"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
)

// Row is the stored form of a bookmark. ReplacingMergeTree keeps the row with the highest
// timestamp per stream.
type Row struct {
	Stream           string    `ch:"stream"`
	ReplicationValue time.Time `ch:"replication_value"`
	WindowStart      time.Time `ch:"window_start"`
	PageNumber       uint32    `ch:"page_number"`
	Timestamp        int64     `ch:"timestamp"`
}

func toRow(b checkpointer.Bookmark) Row {
	return Row{
		Stream:           b.Stream,
		ReplicationValue: b.ReplicationValue.UTC(),
		WindowStart:      b.WindowStart.UTC(),
		PageNumber:       uint32(max(b.PageNumber, 0)), //nolint:gosec // page numbers are small and non-negative
		Timestamp:        b.Timestamp,
	}
}

func (r Row) bookmark() checkpointer.Bookmark {
	return checkpointer.Bookmark{
		Stream:           r.Stream,
		ReplicationValue: r.ReplicationValue,
		WindowStart:      r.WindowStart,
		PageNumber:       int(r.PageNumber),
		Timestamp:        r.Timestamp,
	}
}
