// Package metrics holds the Prometheus collectors of the points service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	authProofs      *prometheus.CounterVec
	signups         *prometheus.CounterVec
	referrals       *prometheus.CounterVec
	leaderboardPage prometheus.Counter
	snapshotBuild   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authProofs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_auth_proofs_total",
			Help: "Signed proofs verified, by method and result.",
		}, []string{"method", "result"}),
		signups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_signups_total",
			Help: "Signup requests, by whether an identity was created.",
		}, []string{"created"}),
		referrals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_referrals_total",
			Help: "Referral applications during signup, by result.",
		}, []string{"result"}),
		leaderboardPage: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_leaderboard_pages_total",
			Help: "Leaderboard pages served.",
		}),
		snapshotBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "points_snapshot_build_seconds",
			Help:    "Time to build a ranked points snapshot.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.authProofs, m.signups, m.referrals, m.leaderboardPage, m.snapshotBuild)
	return m
}

// AuthProof records a verification outcome.
func (m *Metrics) AuthProof(method, result string) {
	if m == nil {
		return
	}
	m.authProofs.WithLabelValues(method, result).Inc()
}

// Signup records a signup and whether it created an identity.
func (m *Metrics) Signup(created bool) {
	if m == nil {
		return
	}
	label := "false"
	if created {
		label = "true"
	}
	m.signups.WithLabelValues(label).Inc()
}

// Referral records a referral application result ("attached" or an error class).
func (m *Metrics) Referral(result string) {
	if m == nil {
		return
	}
	m.referrals.WithLabelValues(result).Inc()
}

// LeaderboardPage counts a served page.
func (m *Metrics) LeaderboardPage() {
	if m == nil {
		return
	}
	m.leaderboardPage.Inc()
}

// SnapshotBuilt observes a snapshot build duration.
func (m *Metrics) SnapshotBuilt(d time.Duration) {
	if m == nil {
		return
	}
	m.snapshotBuild.Observe(d.Seconds())
}
