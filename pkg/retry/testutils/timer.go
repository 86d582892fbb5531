package testutils

import (
	"sync"
	"time"
)

// RecordingTimer fires immediately and remembers every wait it was asked for.
type RecordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

// NewRecordingTimer returns a timer for retry.Policy.Timer that never sleeps.
func NewRecordingTimer() *RecordingTimer {
	return &RecordingTimer{c: make(chan time.Time, 1)}
}

func (t *RecordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *RecordingTimer) Stop() {}

func (t *RecordingTimer) C() <-chan time.Time {
	return t.c
}

// Waits returns a copy of the recorded waits.
func (t *RecordingTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}
