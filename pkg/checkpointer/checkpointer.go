package checkpointer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloudpayments-tap/extractor/pkg/metrics"
	"github.com/cloudpayments-tap/extractor/pkg/retry"
)

// Bookmark is the persisted incremental-sync progress of one stream.
type Bookmark struct {
	Stream string
	// ReplicationValue is the high-watermark of the replication key. The next run requests
	// records created at or after it, unless the bookmark was taken inside a window.
	ReplicationValue time.Time
	// WindowStart and PageNumber locate the next page to fetch within the current window.
	// PageNumber above 1 makes the next run re-enter that window at that page.
	WindowStart time.Time
	PageNumber  int
	// Timestamp is the unix time (seconds) the bookmark was written.
	Timestamp int64
}

// Checkpointer abstracts bookmark persistence across different data stores.
type Checkpointer interface {
	// Initialize ensures the underlying storage is ready (creates tables, schemas, etc.). This
	// should be idempotent and safe to call multiple times.
	Initialize(ctx context.Context) error

	// Write persists a bookmark. Implementations stamp Timestamp with the current unix time.
	Write(ctx context.Context, b Bookmark) error

	// Read retrieves the latest bookmark of a stream. exists is false when none was written.
	Read(ctx context.Context, stream string) (b Bookmark, exists bool, err error)
}

// Start persists the state to durable storage until ctx is cancelled. With a zero interval
// every checkpoint is written as soon as it is taken, otherwise the latest one is written on
// each tick. On cancellation the pending bookmark, if any, is flushed one last time.
//
// Returns nil on graceful shutdown, or an error if a write fails after all retries.
func Start(
	ctx context.Context,
	s *State,
	cp Checkpointer,
	cfg Config,
	log *zap.SugaredLogger,
	m *metrics.Metrics,
) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg = cfg.withDefaults()

	var tick <-chan time.Time
	updates := s.Updates()
	if cfg.Interval > 0 {
		t := time.NewTicker(cfg.Interval)
		defer t.Stop()
		tick = t.C
		updates = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.WriteTimeout*time.Duration(cfg.MaxRetries+1))
			err := Flush(flushCtx, s, cp, cfg, m)
			cancel()
			if err != nil {
				return fmt.Errorf("final bookmark flush: %w", err)
			}
			log.Debugw("bookmark persister stopped", "bookmark", s.Bookmark().ReplicationValue)
			return nil
		case <-tick:
		case <-updates:
		}

		if err := Flush(ctx, s, cp, cfg, m); err != nil {
			if ctx.Err() != nil {
				continue
			}
			return err
		}
	}
}

// Flush writes the latest bookmark if it has not been persisted yet, retrying failed writes
// cfg.MaxRetries times.
func Flush(ctx context.Context, s *State, cp Checkpointer, cfg Config, m *metrics.Metrics) error {
	b, version, dirty := s.pending()
	if !dirty {
		return nil
	}
	cfg = cfg.withDefaults()

	policy := retry.Policy{
		MaxAttempts: cfg.MaxRetries + 1,
		Wait:        cfg.RetryBackoff,
		Retriable:   func(error) bool { return true },
	}
	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
		defer cancel()
		start := time.Now()
		err := cp.Write(writeCtx, b)
		m.RecordCheckpointWrite(err, time.Since(start).Seconds())
		return err
	})
	if err != nil {
		var exhausted *retry.ExhaustedRetriesError
		if errors.As(err, &exhausted) {
			err = exhausted.Err
		}
		return fmt.Errorf("failed to write bookmark (stream: %s, value: %s) after %d attempts: %w",
			b.Stream, b.ReplicationValue.Format(time.RFC3339), cfg.MaxRetries+1, err)
	}

	s.markPersisted(version)
	return nil
}
