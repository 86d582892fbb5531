package checkpointer

import (
	"fmt"
	"sync"
)

// State is the thread-safe, in-memory latest bookmark of a stream. The extraction loop writes
// it after every page while the persister reads it.
type State struct {
	mu        sync.Mutex
	bookmark  Bookmark
	version   uint64 // bumped on every accepted checkpoint
	persisted uint64 // version last written to storage

	updates chan struct{}
}

// NewState creates a State holding the bookmark loaded at startup. It starts clean: the
// initial bookmark is already in storage (or there is none).
func NewState(initial Bookmark) *State {
	return &State{
		bookmark: initial,
		updates:  make(chan struct{}, 1),
	}
}

// Checkpoint records a new bookmark. The replication value may never move backwards and the
// stream may not change.
func (s *State) Checkpoint(b Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bookmark.Stream != "" && b.Stream != s.bookmark.Stream {
		return fmt.Errorf("bookmark stream mismatch: %q != %q", b.Stream, s.bookmark.Stream)
	}
	if b.ReplicationValue.Before(s.bookmark.ReplicationValue) {
		return fmt.Errorf(
			"bookmark regression for stream %q: %s < %s",
			b.Stream, b.ReplicationValue, s.bookmark.ReplicationValue,
		)
	}

	s.bookmark = b
	s.version++
	select {
	case s.updates <- struct{}{}:
	default:
	}
	return nil
}

// Bookmark returns the latest bookmark.
func (s *State) Bookmark() Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookmark
}

// Dirty reports whether a checkpoint was taken since the last successful write.
func (s *State) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.persisted
}

// Updates signals (coalesced) that a checkpoint was taken.
func (s *State) Updates() <-chan struct{} {
	return s.updates
}

func (s *State) pending() (Bookmark, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookmark, s.version, s.version != s.persisted
}

func (s *State) markPersisted(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.persisted {
		s.persisted = version
	}
}
