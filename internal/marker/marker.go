// Package marker owns the worklist cursor of a validation session.
//
// The worklist keeps load order. A pass is one forward sweep: Next skips
// features that already received a terminal decision and reports the end of
// the sweep as a success carrying nil. Requeue starts another sweep over the
// features that are still incomplete, which is how skipped features come back.
package marker

import (
	"errors"

	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/result"
)

// ErrUndefined is the failure for a session without a worklist.
var ErrUndefined = errors.New("marked features are undefined")

// ErrOutOfRange is the failure when the cursor is before the first or past
// the last feature.
var ErrOutOfRange = errors.New("no current marked feature")

// Marker is the worklist for one validation session. A nil *Marker means no
// session is active; every method treats it as a failure.
type Marker struct {
	items  []*feature.Marked
	cursor int
	pass   int
}

// New creates a marker over items in the given order. The cursor starts
// before the first feature.
func New(items []*feature.Marked) *Marker {
	return &Marker{items: items, cursor: -1, pass: 1}
}

// Restore rebuilds a marker at a saved cursor and pass.
func Restore(items []*feature.Marked, cursor, pass int) *Marker {
	if cursor < -1 {
		cursor = -1
	}
	if cursor > len(items) {
		cursor = len(items)
	}
	if pass < 1 {
		pass = 1
	}
	return &Marker{items: items, cursor: cursor, pass: pass}
}

// Current returns the feature at the cursor.
func (m *Marker) Current() result.Result[*feature.Marked] {
	if m == nil || m.items == nil {
		return result.Failure[*feature.Marked](ErrUndefined)
	}
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return result.Failure[*feature.Marked](ErrOutOfRange)
	}
	return result.Success(m.items[m.cursor])
}

// Next moves to the next incomplete feature. With shouldAdvance false an
// incomplete current feature is returned without moving. At the end of the
// sweep it returns a success with a nil feature and leaves the cursor past
// the last entry.
func (m *Marker) Next(shouldAdvance bool) result.Result[*feature.Marked] {
	if m == nil || m.items == nil {
		return result.Failure[*feature.Marked](ErrUndefined)
	}

	if !shouldAdvance && m.cursor >= 0 && m.cursor < len(m.items) && !m.items[m.cursor].IsComplete {
		return result.Success(m.items[m.cursor])
	}

	for i := m.cursor + 1; i < len(m.items); i++ {
		if !m.items[i].IsComplete {
			m.cursor = i
			return result.Success(m.items[i])
		}
	}

	m.cursor = len(m.items)
	return result.Success[*feature.Marked](nil)
}

// Requeue starts a new sweep if any feature is still incomplete and reports
// whether it did.
func (m *Marker) Requeue() bool {
	if m == nil || m.Remaining() == 0 {
		return false
	}
	m.cursor = -1
	m.pass++
	return true
}

// Find returns the marked feature with the given ID.
func (m *Marker) Find(featureID string) result.Result[*feature.Marked] {
	if m == nil || m.items == nil {
		return result.Failure[*feature.Marked](ErrUndefined)
	}
	for _, item := range m.items {
		if item.Feature.FeatureID == featureID {
			return result.Success(item)
		}
	}
	return result.Failure[*feature.Marked](errors.New("could not find marked feature with ID: " + featureID))
}

// Items returns the worklist in load order.
func (m *Marker) Items() []*feature.Marked {
	if m == nil {
		return nil
	}
	return m.items
}

// Cursor returns the cursor position; -1 before the first feature.
func (m *Marker) Cursor() int {
	if m == nil {
		return -1
	}
	return m.cursor
}

// Pass returns the 1-based sweep number.
func (m *Marker) Pass() int {
	if m == nil {
		return 0
	}
	return m.pass
}

// Len is the worklist size.
func (m *Marker) Len() int {
	if m == nil {
		return 0
	}
	return len(m.items)
}

// Completed counts features with a terminal decision.
func (m *Marker) Completed() int {
	if m == nil {
		return 0
	}
	n := 0
	for _, item := range m.items {
		if item.IsComplete {
			n++
		}
	}
	return n
}

// Remaining counts features without a terminal decision.
func (m *Marker) Remaining() int {
	return m.Len() - m.Completed()
}
