package leaderboard

import (
	"context"
	"errors"
	"sync"

	"github.com/mrgn-points/points_api/internal/points"
)

// PageFetcher fetches one page of the ranking.
type PageFetcher interface {
	FetchPage(ctx context.Context, cursor string, size int) (Page, error)
}

// Paginator walks the ranking for a single consumer. At most one fetch is in flight;
// a second request while one is outstanding is dropped with ErrFetchInFlight. Rows
// already delivered are filtered out of later pages by address, so rows that move
// between pages are delivered once.
type Paginator struct {
	fetcher PageFetcher
	size    int
	onPage  func(Page, error)

	mu       sync.Mutex
	cursor   string
	seen     map[string]struct{}
	rows     []points.Record
	done     bool
	closed   bool
	inflight bool
	cancel   context.CancelFunc
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithPageSize sets the requested page size.
func WithPageSize(size int) PaginatorOption {
	return func(p *Paginator) { p.size = ClampPageSize(size) }
}

// WithOnPage sets the callback receiving pages fetched through OnExhausted.
func WithOnPage(fn func(Page, error)) PaginatorOption {
	return func(p *Paginator) { p.onPage = fn }
}

// NewPaginator builds a paginator positioned before the first page.
func NewPaginator(fetcher PageFetcher, opts ...PaginatorOption) *Paginator {
	p := &Paginator{
		fetcher: fetcher,
		size:    DefaultPageSize,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next fetches the following page and returns only the rows not delivered before.
// On any failure the cursor and seen set are left unchanged.
func (p *Paginator) Next(ctx context.Context) (Page, error) {
	fetchCtx, cursor, err := p.begin(ctx)
	if err != nil {
		return Page{}, err
	}
	return p.fetch(fetchCtx, cursor)
}

// OnExhausted signals that the consumer has displayed everything delivered so far.
// It starts the next fetch in the background and hands the result to the OnPage
// callback. It returns false when the signal was coalesced into an outstanding
// fetch or there is nothing left to fetch.
func (p *Paginator) OnExhausted(ctx context.Context) bool {
	fetchCtx, cursor, err := p.begin(ctx)
	if err != nil {
		return false
	}
	go func() {
		page, err := p.fetch(fetchCtx, cursor)
		if errors.Is(err, ErrClosed) {
			return
		}
		if p.onPage != nil {
			p.onPage(page, err)
		}
	}()
	return true
}

// Seen reports whether a row for address has been delivered.
func (p *Paginator) Seen(address string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[address]
	return ok
}

// Rows returns every row delivered so far, in delivery order.
func (p *Paginator) Rows() []points.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]points.Record(nil), p.rows...)
}

// Done reports whether the last page has been delivered.
func (p *Paginator) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Close aborts an outstanding fetch and discards its result. Later calls fail with
// ErrClosed.
func (p *Paginator) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Paginator) begin(ctx context.Context) (context.Context, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, "", ErrClosed
	case p.inflight:
		return nil, "", ErrFetchInFlight
	case p.done:
		return nil, "", ErrExhausted
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	p.inflight = true
	p.cancel = cancel
	return fetchCtx, p.cursor, nil
}

func (p *Paginator) fetch(ctx context.Context, cursor string) (Page, error) {
	page, err := p.fetcher.FetchPage(ctx, cursor, p.size)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	if p.closed {
		return Page{}, ErrClosed
	}
	if err != nil {
		return Page{}, classify(err)
	}

	fresh := make([]points.Record, 0, len(page.Entries))
	for _, row := range page.Entries {
		if _, ok := p.seen[row.Address]; ok {
			continue
		}
		p.seen[row.Address] = struct{}{}
		fresh = append(fresh, row)
	}
	p.rows = append(p.rows, fresh...)
	p.cursor = page.NextCursor
	p.done = page.NextCursor == ""
	return Page{Entries: fresh, NextCursor: page.NextCursor}, nil
}

func classify(err error) error {
	var fe *FetchError
	switch {
	case errors.As(err, &fe):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return NewFetchError(ErrTimeout, err)
	default:
		return NewFetchError(ErrNetworkFailure, err)
	}
}
