package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/mrgn-points/points_api/internal/points"
)

type mutableRanking struct {
	mu      sync.Mutex
	records []points.Record
}

func (m *mutableRanking) Snapshot(_ context.Context) ([]points.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]points.Record(nil), m.records...)
	return points.Rank(out), nil
}

func (m *mutableRanking) set(address string, total float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].Address == address {
			m.records[i] = points.NewRecord(address, total, 0, 0, 0)
			return
		}
	}
	m.records = append(m.records, points.NewRecord(address, total, 0, 0, 0))
}

func seededRanking(n int) *mutableRanking {
	r := &mutableRanking{}
	for i := 0; i < n; i++ {
		r.set(fmt.Sprintf("acct-%02d", i), float64(100-i))
	}
	return r
}

func TestFetchPageWalksRankingInOrder(t *testing.T) {
	svc := NewService(seededRanking(7), nil, nil)
	ctx := context.Background()

	var got []string
	cursor := ""
	for {
		page, err := svc.FetchPage(ctx, cursor, 3)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		for _, e := range page.Entries {
			got = append(got, e.Address)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(got) != 7 {
		t.Fatalf("expected 7 rows, got %v", got)
	}
	for i, addr := range got {
		if want := fmt.Sprintf("acct-%02d", i); addr != want {
			t.Fatalf("row %d: want %s got %s", i, want, addr)
		}
	}
}

func TestFetchPageTieBreaksOnAddress(t *testing.T) {
	ranking := &mutableRanking{}
	for _, a := range []string{"acct-c", "acct-a", "acct-b"} {
		ranking.set(a, 10)
	}
	svc := NewService(ranking, nil, nil)

	first, err := svc.FetchPage(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	second, err := svc.FetchPage(context.Background(), first.NextCursor, 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if first.Entries[0].Address != "acct-a" || first.Entries[1].Address != "acct-b" || second.Entries[0].Address != "acct-c" {
		t.Fatalf("unexpected order: %+v %+v", first.Entries, second.Entries)
	}
	if second.NextCursor != "" {
		t.Fatalf("expected last page, got cursor %q", second.NextCursor)
	}
}

func TestFetchPageClampsSize(t *testing.T) {
	svc := NewService(seededRanking(120), nil, nil)
	cases := []struct {
		size int
		want int
	}{
		{0, DefaultPageSize},
		{-3, DefaultPageSize},
		{1, 1},
		{500, MaxPageSize},
	}
	for _, tc := range cases {
		page, err := svc.FetchPage(context.Background(), "", tc.size)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if len(page.Entries) != tc.want {
			t.Fatalf("size %d: expected %d rows, got %d", tc.size, tc.want, len(page.Entries))
		}
	}
}

func TestFetchPageRejectsBadCursor(t *testing.T) {
	svc := NewService(seededRanking(3), nil, nil)
	for _, cursor := range []string{"!!!", "bm90LWpzb24", "e30"} {
		if _, err := svc.FetchPage(context.Background(), cursor, 10); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("cursor %q: expected ErrInvalidCursor, got %v", cursor, err)
		}
	}
}

func TestFetchPageEmptyRanking(t *testing.T) {
	svc := NewService(&mutableRanking{}, nil, nil)
	page, err := svc.FetchPage(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(page.Entries) != 0 || page.NextCursor != "" {
		t.Fatalf("expected empty final page, got %+v", page)
	}
}

type fixedRanking []points.Record

func (f fixedRanking) Snapshot(_ context.Context) ([]points.Record, error) {
	return append([]points.Record(nil), f...), nil
}

func TestFetchPageContinuesPastSaturatedTotals(t *testing.T) {
	ranking := &mutableRanking{}
	ranking.records = append(ranking.records,
		points.NewRecord("acct-big", 1e308, 0, 0, 1e308),
		points.NewRecord("acct-small", 5, 0, 0, 0),
	)
	svc := NewService(ranking, nil, nil)
	ctx := context.Background()

	first, err := svc.FetchPage(ctx, "", 1)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Entries) != 1 || first.Entries[0].Address != "acct-big" {
		t.Fatalf("unexpected first page: %+v", first.Entries)
	}
	if first.NextCursor == "" {
		t.Fatal("expected a cursor while rows remain")
	}

	second, err := svc.FetchPage(ctx, first.NextCursor, 1)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Entries) != 1 || second.Entries[0].Address != "acct-small" {
		t.Fatalf("unexpected second page: %+v", second.Entries)
	}
	if second.NextCursor != "" {
		t.Fatalf("expected end of ranking, got cursor %q", second.NextCursor)
	}
}

func TestFetchPageReportsUnencodableCursor(t *testing.T) {
	svc := NewService(fixedRanking{
		{Address: "acct-a", TotalPoints: math.Inf(1)},
		{Address: "acct-b", TotalPoints: 1},
	}, nil, nil)

	if _, err := svc.FetchPage(context.Background(), "", 1); err == nil {
		t.Fatal("expected an error for a non-finite cursor position")
	}
}
