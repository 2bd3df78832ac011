package apiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrgn-points/points_api/internal/leaderboard"
	"github.com/mrgn-points/points_api/internal/session"
)

func TestFetchPageDecodesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/leaderboard" || r.URL.Query().Get("cursor") != "abc" || r.URL.Query().Get("limit") != "2" {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entries":[{"address":"acct-a","total_points":5,"rank":1},{"address":"acct-b","total_points":4,"rank":2}],"next_cursor":"def"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).FetchPage(context.Background(), "abc", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(page.Entries) != 2 || page.Entries[1].Address != "acct-b" || page.NextCursor != "def" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestServerErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"ranking unavailable"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchPage(context.Background(), "", 10)
	if !errors.Is(err, leaderboard.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestClientErrorIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid cursor"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL).FetchPage(context.Background(), "zzz", 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "invalid cursor" {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestSlowServerIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithTimeout(50*time.Millisecond)).FetchPage(context.Background(), "", 10)
	if !errors.Is(err, leaderboard.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestUnreachableServerIsNetworkFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = New("http://" + addr).FetchPage(context.Background(), "", 10)
	if !errors.Is(err, leaderboard.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestLookupAndPointsFeedSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/identities/acct-a":
			_, _ = w.Write([]byte(`{"exists":true,"identity":{"id":"id-1","address":"acct-a","referral_code":"ABCDEF","auth_method":"memo"}}`))
		case "/api/v1/identities/acct-b":
			_, _ = w.Write([]byte(`{"exists":false}`))
		case "/api/v1/points/acct-a":
			_, _ = w.Write([]byte(`{"address":"acct-a","deposit_points":3,"borrow_points":4,"referral_points":0,"social_points":1,"total_points":999,"rank":7}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := New(srv.URL)
	var _ session.IdentityLookup = client
	var _ session.PointsSource = client
	var _ leaderboard.PageFetcher = client

	ident, ok, err := client.Lookup(context.Background(), "acct-a")
	if err != nil || !ok || ident.ReferralCode != "ABCDEF" {
		t.Fatalf("lookup: %+v %v %v", ident, ok, err)
	}
	if _, ok, err := client.Lookup(context.Background(), "acct-b"); err != nil || ok {
		t.Fatalf("expected unregistered, got %v %v", ok, err)
	}

	rec, err := client.GetPoints(context.Background(), "acct-a")
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	if rec.TotalPoints != 8 || rec.Rank != 7 {
		t.Fatalf("total must be recomputed from components: %+v", rec)
	}
}
