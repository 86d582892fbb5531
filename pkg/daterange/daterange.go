// Package daterange partitions the time range between a resume point and "now" into
// day-aligned windows.
//
// Windows are half-open intervals [Start, End). The first window starts exactly at the
// resume point (or the configured start on a first run), every later boundary is local
// midnight in the configured location, and the final window ends at "now". "now" is
// supplied once by the caller, so a single run always sees the same plan.
package daterange

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// Window is a half-open interval [Start, End) of record creation time.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Clamp returns t limited to [Start, End].
func (w Window) Clamp(t time.Time) time.Time {
	if t.Before(w.Start) {
		return w.Start
	}
	if t.After(w.End) {
		return w.End
	}
	return t
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Origin returns the instant window generation starts from and whether this is a first run.
// A zero resume point or one equal to the configured start is a first run. A resume point
// earlier than the configured start is clamped to it.
func Origin(resumePoint, configuredStart time.Time) (time.Time, bool) {
	if resumePoint.IsZero() || resumePoint.Equal(configuredStart) {
		return configuredStart, true
	}
	if resumePoint.Before(configuredStart) {
		return configuredStart, false
	}
	return resumePoint, false
}

// Generate lazily yields the windows from the origin (see Origin) up to now, ascending by
// Start. Day boundaries are computed in loc (UTC when nil). If the origin is not before now
// the sequence is empty.
func Generate(resumePoint, configuredStart time.Time, loc *time.Location, now time.Time) iter.Seq[Window] {
	if loc == nil {
		loc = time.UTC
	}
	origin, _ := Origin(resumePoint, configuredStart)
	return func(yield func(Window) bool) {
		start := origin.In(loc)
		end := now.In(loc)
		for start.Before(end) {
			next := nextMidnight(start, loc)
			if next.After(end) {
				next = end
			}
			if !yield(Window{Start: start, End: next}) {
				return
			}
			start = next
		}
	}
}

// Windows collects Generate into a slice.
func Windows(resumePoint, configuredStart time.Time, loc *time.Location, now time.Time) []Window {
	return slices.Collect(Generate(resumePoint, configuredStart, loc, now))
}

func nextMidnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
