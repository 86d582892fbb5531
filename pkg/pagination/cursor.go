// Package pagination tracks page-number progress through a single date window.
package pagination

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrCursorExhausted is returned when Advance is called on a finished cursor.
var ErrCursorExhausted = errors.New("page cursor already exhausted")

// PageState is the cursor position: the page to request next and whether the window is done.
type PageState struct {
	PageNumber int
	Exhausted  bool
}

// Page is what the cursor needs to know about the page that was just consumed.
type Page struct {
	RecordCount int
	Body        []byte
}

// Cursor walks page numbers starting at 1. It only moves forward.
type Cursor struct {
	state       PageState
	hasMorePath string
}

// NewCursor returns a cursor positioned on page 1. hasMorePath is the gjson path of an optional
// boolean "more pages" flag in the response body; empty disables the check.
func NewCursor(hasMorePath string) *Cursor {
	return NewCursorAt(1, hasMorePath)
}

// NewCursorAt returns a cursor positioned on page, used to pick a window up where a previous
// run left off. Pages below 1 start at 1.
func NewCursorAt(page int, hasMorePath string) *Cursor {
	return &Cursor{
		state:       PageState{PageNumber: max(page, 1)},
		hasMorePath: hasMorePath,
	}
}

// Current returns the current position.
func (c *Cursor) Current() PageState {
	return c.state
}

// Finished reports whether the window has been walked to exhaustion.
func (c *Cursor) Finished() bool {
	return c.state.Exhausted
}

// Advance moves to the next page after p has been fully consumed. The cursor becomes exhausted
// when p had no records or when its body carries a has-more flag set to false.
func (c *Cursor) Advance(p Page) (PageState, error) {
	if c.state.Exhausted {
		return c.state, ErrCursorExhausted
	}
	c.state.PageNumber++
	c.state.Exhausted = p.RecordCount == 0 || !c.hasMore(p.Body)
	return c.state, nil
}

func (c *Cursor) hasMore(body []byte) bool {
	if c.hasMorePath == "" || len(body) == 0 {
		return true
	}
	v := gjson.GetBytes(body, c.hasMorePath)
	if v.Type != gjson.True && v.Type != gjson.False {
		return true
	}
	return v.Bool()
}
