package extractor

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
	"github.com/cloudpayments-tap/extractor/pkg/cloudpayments"
	"github.com/cloudpayments-tap/extractor/pkg/daterange"
	"github.com/cloudpayments-tap/extractor/pkg/pagination"
)

// Stream is a single, non-restartable pass over the planned windows. Records are fetched
// page by page as the caller pulls them:
//
//	s := e.Stream(ctx)
//	for s.Next() {
//		rec := s.Record()
//	}
//	if err := s.Err(); err != nil { ... }
//
// The bookmark for a page is reported once the caller has pulled every record of it. A Stream
// is not safe for concurrent use.
type Stream struct {
	e       *Extractor
	ctx     context.Context
	windows []daterange.Window

	wi        int
	cursor    *pagination.Cursor
	startPage int

	page    *fetchedPage
	records []cloudpayments.Record
	next    int

	record   cloudpayments.Record
	bookmark time.Time
	requests int
	emitted  int
	err      error
	done     bool
}

type fetchedPage struct {
	body   []byte
	count  int
	latest time.Time
	ok     bool
}

// Next fetches as needed and advances to the next record. It returns false when every window
// is exhausted or an error occurred; check Err afterwards.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for {
		if s.next < len(s.records) {
			s.record = s.records[s.next]
			s.next++
			s.emitted++
			s.e.metrics.AddRecordsEmitted(s.e.cfg.Stream.Name, 1)
			return true
		}
		s.record = nil
		if err := s.step(); err != nil {
			s.fail(err)
			return false
		}
		if s.done {
			return false
		}
	}
}

// Record returns the current record. Valid until the next call to Next.
func (s *Stream) Record() cloudpayments.Record {
	return s.record
}

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Requests returns the number of HTTP attempts made so far, retries included.
func (s *Stream) Requests() int {
	return s.requests
}

// Emitted returns the number of records returned by Next so far.
func (s *Stream) Emitted() int {
	return s.emitted
}

// Bookmark returns the replication value reached so far.
func (s *Stream) Bookmark() time.Time {
	return s.bookmark
}

// All adapts the stream to a range-over-func sequence. A failure is yielded once as the last
// pair with a nil record.
func (s *Stream) All() iter.Seq2[cloudpayments.Record, error] {
	return func(yield func(cloudpayments.Record, error) bool) {
		for s.Next() {
			if !yield(s.Record(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// step settles the page whose records were just drained, then moves to the next page or
// window and fetches it. It sets done when there is nothing left.
func (s *Stream) step() error {
	if s.page != nil {
		if err := s.settlePage(); err != nil {
			return err
		}
	}

	for {
		if s.cursor == nil {
			if s.wi >= len(s.windows) {
				s.done = true
				s.e.log.Infow("extraction finished",
					"records", s.emitted,
					"requests", s.requests,
					"bookmark", s.bookmark,
				)
				return nil
			}
			// only the first window can be picked up mid-way
			s.cursor = pagination.NewCursorAt(s.startPage, s.e.cfg.Stream.HasMorePath)
			s.startPage = 1
		}
		w := s.windows[s.wi]

		if s.cursor.Finished() {
			if err := s.completeWindow(w); err != nil {
				return err
			}
			continue
		}

		// cooperative cancellation point between pages
		if err := s.ctx.Err(); err != nil {
			return fmt.Errorf("extraction cancelled: %w", err)
		}

		page, records, err := s.fetch(w, s.cursor.Current())
		if err != nil {
			return err
		}
		s.page, s.records, s.next = page, records, 0
		if len(records) > 0 {
			return nil
		}
		if err := s.settlePage(); err != nil {
			return err
		}
	}
}

func (s *Stream) fetch(w daterange.Window, ps pagination.PageState) (*fetchedPage, []cloudpayments.Record, error) {
	cfg := s.e.cfg
	payload := cloudpayments.NewListRequest(w, ps, cfg.TimeZone)

	policy := cfg.Retry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.e.metrics.IncRetry(errorType(err))
		s.e.log.Warnw("request failed, retrying",
			"window", w.String(),
			"page", ps.PageNumber,
			"attempt", attempt,
			"maxAttempts", policy.MaxAttempts,
			"wait", wait,
			"error", err,
		)
	}

	var resp *cloudpayments.Response
	err := policy.Do(s.ctx, func(ctx context.Context, _ int) error {
		s.requests++
		// An attempt in flight is allowed to finish; cancellation is honoured between attempts.
		r, err := s.e.sender.Post(context.WithoutCancel(ctx), cfg.Stream.Path, payload)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch window %s page %d: %w", w, ps.PageNumber, err)
	}

	records, err := cloudpayments.ExtractRecords(resp.Body, cfg.Stream.RecordsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("parse window %s page %d: %w", w, ps.PageNumber, err)
	}
	s.e.metrics.IncPagesFetched(cfg.Stream.Name)

	page := &fetchedPage{body: resp.Body, count: len(records)}
	if cfg.Stream.ReplicationKey != "" {
		page.latest, page.ok = cloudpayments.MaxTimestamp(records, cfg.Stream.ReplicationKey, time.UTC)
	}
	s.e.log.Debugw("fetched page",
		"window", w.String(),
		"page", ps.PageNumber,
		"records", len(records),
	)
	return page, records, nil
}

// settlePage advances the bookmark past the consumed page, reports it and moves the cursor.
func (s *Stream) settlePage() error {
	w := s.windows[s.wi]
	page := s.page
	s.page, s.records, s.next = nil, nil, 0

	if page.ok {
		if v := w.Clamp(page.latest); v.After(s.bookmark) {
			s.bookmark = v
		}
	}

	state, err := s.cursor.Advance(pagination.Page{RecordCount: page.count, Body: page.body})
	if err != nil {
		return err
	}
	return s.checkpoint(checkpointer.Bookmark{
		Stream:           s.e.cfg.Stream.Name,
		ReplicationValue: s.bookmark,
		WindowStart:      w.Start,
		PageNumber:       state.PageNumber,
	})
}

func (s *Stream) completeWindow(w daterange.Window) error {
	if w.End.After(s.bookmark) {
		s.bookmark = w.End
	}
	s.cursor = nil
	s.wi++
	s.e.metrics.IncWindowsCompleted(s.e.cfg.Stream.Name)
	s.e.log.Infow("window completed", "window", w.String(), "bookmark", s.bookmark)
	return s.checkpoint(checkpointer.Bookmark{
		Stream:           s.e.cfg.Stream.Name,
		ReplicationValue: s.bookmark,
		WindowStart:      w.End,
		PageNumber:       1,
	})
}

func (s *Stream) checkpoint(b checkpointer.Bookmark) error {
	s.e.metrics.SetBookmark(b.Stream, b.ReplicationValue)
	if s.e.tracker == nil {
		return nil
	}
	if err := s.e.tracker.Checkpoint(b); err != nil {
		return &CheckpointError{Bookmark: b, Err: err}
	}
	return nil
}

// CheckpointError is returned when the tracker refuses a bookmark.
type CheckpointError struct {
	Bookmark checkpointer.Bookmark
	Err      error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at %s: %v", e.Bookmark.Stream, e.Bookmark.ReplicationValue.Format(time.RFC3339), e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

func (s *Stream) fail(err error) {
	s.err = err
	s.done = true
	s.records = nil
	s.record = nil
	s.e.metrics.IncError(errorType(err))
	s.e.log.Errorw("extraction failed",
		"records", s.emitted,
		"requests", s.requests,
		"bookmark", s.bookmark,
		"error", err,
	)
}
