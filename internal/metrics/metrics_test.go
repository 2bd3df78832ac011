package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsCount(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AuthProof("memo", "ok")
	m.AuthProof("memo", "ok")
	m.AuthProof("transaction", "challenge_expired")
	m.Signup(true)
	m.Signup(false)
	m.Referral("invalid_code")
	m.LeaderboardPage()
	m.SnapshotBuilt(20 * time.Millisecond)

	if got := testutil.ToFloat64(m.authProofs.WithLabelValues("memo", "ok")); got != 2 {
		t.Fatalf("expected 2 memo proofs, got %v", got)
	}
	if got := testutil.ToFloat64(m.signups.WithLabelValues("true")); got != 1 {
		t.Fatalf("expected 1 created signup, got %v", got)
	}
	if got := testutil.ToFloat64(m.referrals.WithLabelValues("invalid_code")); got != 1 {
		t.Fatalf("expected 1 invalid referral, got %v", got)
	}
	if got := testutil.ToFloat64(m.leaderboardPage); got != 1 {
		t.Fatalf("expected 1 page, got %v", got)
	}
	if got := testutil.CollectAndCount(m.snapshotBuild); got != 1 {
		t.Fatalf("expected snapshot histogram to be collected, got %d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.AuthProof("memo", "ok")
	m.Signup(true)
	m.Referral("attached")
	m.LeaderboardPage()
	m.SnapshotBuilt(time.Second)
}
