package harvest

import (
	"context"
	"time"

	"github.com/araddon/dateparse"

	"github.com/dainst/marc-authority-harvester/errors"
)

// Feed is a source's change feed, consumed page by page. Implementations
// paginate however the upstream service does (offset windows, scroll cursors,
// numbered pages); callers just loop until done.
type Feed interface {
	// Next returns the next page of item references. done is true once the
	// feed is exhausted; the final page may be empty.
	Next(ctx context.Context) (refs []ItemRef, done bool, err error)
}

// Window is the harvested timespan: everything touched on or after Since.
// A zero Since means a complete export.
type Window struct {
	Since time.Time
}

// NewWindow builds a harvest window from a start date, truncated to midnight
// UTC so that date-only upstream timestamps compare cleanly.
func NewWindow(since time.Time) Window {
	if since.IsZero() {
		return Window{}
	}
	y, m, d := since.UTC().Date()
	return Window{Since: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Contains reports whether a timestamp falls inside the window. The lower
// bound is inclusive: an item touched exactly at the start date is harvested.
// Zero timestamps are treated as outside a bounded window.
func (w Window) Contains(ts time.Time) bool {
	if w.Since.IsZero() {
		return true
	}
	if ts.IsZero() {
		return false
	}
	return !ts.UTC().Before(w.Since)
}

// ParseUpstreamTime parses the loosely formatted timestamps the upstream
// services emit (ISO dates, RFC 3339 with and without zones, epoch millis)
// and normalizes them to UTC.
func ParseUpstreamTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.Wrap(errors.ErrDecode, "empty timestamp")
	}
	ts, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrapf(errors.ErrDecode, "unparseable timestamp %q: %v", value, err)
	}
	return ts.UTC(), nil
}
