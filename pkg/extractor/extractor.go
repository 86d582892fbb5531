// Package extractor walks day windows and pages of a list endpoint and yields its records one
// at a time, reporting a bookmark after every page.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
	"github.com/cloudpayments-tap/extractor/pkg/cloudpayments"
	"github.com/cloudpayments-tap/extractor/pkg/daterange"
	"github.com/cloudpayments-tap/extractor/pkg/metrics"
	"github.com/cloudpayments-tap/extractor/pkg/retry"
)

// Sender performs a single request attempt. *cloudpayments.Client implements it.
type Sender interface {
	Post(ctx context.Context, path string, payload any) (*cloudpayments.Response, error)
}

// Tracker receives the bookmark after every page and at the end of every window.
// *checkpointer.State implements it.
type Tracker interface {
	Checkpoint(b checkpointer.Bookmark) error
}

// Config describes one stream extraction run.
type Config struct {
	Stream StreamConfig
	// StartDate is the configured start of the sync.
	StartDate time.Time
	// Location defines day boundaries. UTC when nil.
	Location *time.Location
	// TimeZone is sent verbatim in every request.
	TimeZone string
	// Bookmark is the resume point loaded from storage. Zero on a first run. A bookmark taken
	// inside a window (PageNumber above 1) resumes that window at that page.
	Bookmark checkpointer.Bookmark
	// Now bounds the last window. Sampled once in New when zero.
	Now time.Time
	// Retry wraps every request. DefaultPolicy when MaxAttempts is zero.
	Retry retry.Policy
}

// Extractor plans the windows of a run and starts streams over them.
type Extractor struct {
	cfg     Config
	sender  Sender
	tracker Tracker
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// New validates cfg and fills in its defaults. tracker and m may be nil.
func New(cfg Config, sender Sender, tracker Tracker, log *zap.SugaredLogger, m *metrics.Metrics) (*Extractor, error) {
	if cfg.Stream.Name == "" || cfg.Stream.Path == "" {
		return nil, errors.New("stream name and path are required")
	}
	if cfg.StartDate.IsZero() {
		return nil, errors.New("start date is required")
	}
	if sender == nil {
		return nil, errors.New("sender is required")
	}
	if !cfg.Bookmark.ReplicationValue.IsZero() && cfg.Bookmark.Stream != "" && cfg.Bookmark.Stream != cfg.Stream.Name {
		return nil, fmt.Errorf("bookmark belongs to stream %q, not %q", cfg.Bookmark.Stream, cfg.Stream.Name)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.Retry.MaxAttempts == 0 {
		timer := cfg.Retry.Timer
		cfg.Retry = retry.DefaultPolicy()
		cfg.Retry.Timer = timer
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Extractor{
		cfg:     cfg,
		sender:  sender,
		tracker: tracker,
		log:     log.With("stream", cfg.Stream.Name),
		metrics: m,
	}, nil
}

// Windows returns the planned windows of a run.
func (e *Extractor) Windows() []daterange.Window {
	point, _ := ResumePoint(e.cfg.Bookmark, e.cfg.StartDate, e.cfg.Now)
	return daterange.Windows(point, e.cfg.StartDate, e.cfg.Location, e.cfg.Now)
}

// ResumePoint returns where window generation starts for b and the page the first window
// starts at. A bookmark taken between two pages of a window points back at the start of that
// window and at its next page, so records older than the replication value that sit on later
// pages are still fetched. Any other bookmark resumes at its replication value on page 1.
func ResumePoint(b checkpointer.Bookmark, configuredStart, now time.Time) (time.Time, int) {
	midWindow := b.PageNumber > 1 &&
		!b.WindowStart.IsZero() &&
		!b.WindowStart.Before(configuredStart) &&
		b.WindowStart.Before(now) &&
		!b.ReplicationValue.Before(b.WindowStart)
	if midWindow {
		return b.WindowStart, b.PageNumber
	}
	return b.ReplicationValue, 1
}

// Stream starts a run. Nothing is requested until the first call to Next.
func (e *Extractor) Stream(ctx context.Context) *Stream {
	point, page := ResumePoint(e.cfg.Bookmark, e.cfg.StartDate, e.cfg.Now)
	origin, firstRun := daterange.Origin(point, e.cfg.StartDate)
	windows := daterange.Windows(point, e.cfg.StartDate, e.cfg.Location, e.cfg.Now)

	// the replication value already reported must never move back
	bookmark := origin
	if rv := e.cfg.Bookmark.ReplicationValue; rv.After(bookmark) {
		bookmark = rv
	}
	e.log.Infow("starting extraction",
		"origin", origin,
		"firstRun", firstRun,
		"page", page,
		"now", e.cfg.Now,
		"windows", len(windows),
	)
	return &Stream{
		e:         e,
		ctx:       ctx,
		windows:   windows,
		startPage: page,
		bookmark:  bookmark,
	}
}

func errorType(err error) string {
	var (
		retriableHTTP *cloudpayments.RetriableHTTPError
		fatalHTTP     *cloudpayments.FatalHTTPError
		business      *cloudpayments.FatalBusinessError
		timeout       *cloudpayments.AttemptTimeoutError
		transport     *cloudpayments.TransportError
		decode        *cloudpayments.DecodeError
		exhausted     *retry.ExhaustedRetriesError
		checkpoint    *CheckpointError
	)
	switch {
	case errors.As(err, &checkpoint):
		return metrics.ErrTypeCheckpoint
	case errors.As(err, &exhausted):
		return metrics.ErrTypeExhausted
	case errors.As(err, &retriableHTTP):
		return metrics.ErrTypeRetriableHTTP
	case errors.As(err, &fatalHTTP):
		return metrics.ErrTypeFatalHTTP
	case errors.As(err, &business):
		return metrics.ErrTypeFatalBusiness
	case errors.As(err, &timeout):
		return metrics.ErrTypeAttemptTimeout
	case errors.As(err, &transport):
		return metrics.ErrTypeTransport
	case errors.As(err, &decode):
		return metrics.ErrTypeDecode
	default:
		return metrics.ErrTypeOther
	}
}
