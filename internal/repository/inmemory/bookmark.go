package inmemory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/cloudpayments-tap/extractor/pkg/checkpointer"
)

var ErrMissingStream = errors.New("bookmark stream is required")

var _ checkpointer.Checkpointer = (*BookmarkRepository)(nil)

// BookmarkRepository is a thread-safe in-memory bookmark store. It keeps every write so runs
// without durable storage can still report their progress.
type BookmarkRepository struct {
	mu     sync.Mutex
	writes map[string][]checkpointer.Bookmark
	now    func() time.Time
}

func NewBookmarkRepository() *BookmarkRepository {
	return &BookmarkRepository{
		writes: make(map[string][]checkpointer.Bookmark),
		now:    time.Now,
	}
}

func (r *BookmarkRepository) Initialize(context.Context) error {
	return nil
}

// Write appends b stamped with the current unix time.
func (r *BookmarkRepository) Write(ctx context.Context, b checkpointer.Bookmark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.Stream == "" {
		return ErrMissingStream
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b.Timestamp = r.now().Unix()
	r.writes[b.Stream] = append(r.writes[b.Stream], b)
	return nil
}

// Read returns the most recent write for stream.
func (r *BookmarkRepository) Read(ctx context.Context, stream string) (checkpointer.Bookmark, bool, error) {
	if err := ctx.Err(); err != nil {
		return checkpointer.Bookmark{}, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	history := r.writes[stream]
	if len(history) == 0 {
		return checkpointer.Bookmark{}, false, nil
	}
	return history[len(history)-1], true, nil
}

func (r *BookmarkRepository) DeleteBookmarks(_ context.Context, stream string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.writes, stream)
	return nil
}

// History returns every bookmark written for stream, oldest first.
func (r *BookmarkRepository) History(stream string) []checkpointer.Bookmark {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.writes[stream])
}
