// Package leaderboard serves the ranked points table with keyset cursors and
// consumes it page by page with deduplication.
package leaderboard

import (
	"errors"
	"fmt"

	"github.com/mrgn-points/points_api/internal/points"
)

const (
	// DefaultPageSize is used when no size is requested.
	DefaultPageSize = 50
	// MaxPageSize bounds a single page.
	MaxPageSize = 100
)

var (
	// ErrInvalidCursor means a cursor could not be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrFetchInFlight is returned when a fetch is requested while another is
	// outstanding. The request is dropped, not queued.
	ErrFetchInFlight = errors.New("fetch already in flight")
	// ErrExhausted is returned once the last page has been delivered.
	ErrExhausted = errors.New("leaderboard exhausted")
	// ErrClosed is returned after Close and for fetches aborted by it.
	ErrClosed = errors.New("paginator closed")

	// ErrNetworkFailure classifies transport and upstream failures.
	ErrNetworkFailure = errors.New("network failure")
	// ErrTimeout classifies fetches that ran past their deadline.
	ErrTimeout = errors.New("timeout")
)

// Page is an ordered slice of the ranking plus the cursor of its last row. An empty
// NextCursor means there are no further rows.
type Page struct {
	Entries    []points.Record `json:"entries"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// FetchError is a failed page fetch. Kind is ErrNetworkFailure or ErrTimeout.
type FetchError struct {
	Kind error
	Err  error
}

// NewFetchError wraps err under kind.
func NewFetchError(kind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ClampPageSize applies the default and bounds to a requested size.
func ClampPageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}
