package points

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mrgn-points/points_api/internal/identity"
	"github.com/mrgn-points/points_api/internal/logging"
	"github.com/mrgn-points/points_api/internal/metrics"
)

const (
	snapshotKey     = "snapshot"
	snapshotTimeout = 30 * time.Second
)

// Directory lists identities and their referral links.
type Directory interface {
	List(ctx context.Context) ([]identity.Identity, error)
	ListReferees(ctx context.Context, referrer string) ([]string, error)
}

// Policy holds the accrual rates. Borrowing accrues at BorrowMultiplier times the
// lending rate.
type Policy struct {
	RatePerDay float64
}

// Aggregator derives points records from activity on every read. Nothing derived
// is persisted.
type Aggregator struct {
	activity  ActivityRepository
	directory Directory
	policy    Policy
	metrics   *metrics.Metrics
	logger    *slog.Logger
	group     singleflight.Group
}

// NewAggregator builds an aggregator. m may be nil.
func NewAggregator(activity ActivityRepository, directory Directory, policy Policy, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		activity:  activity,
		directory: directory,
		policy:    policy,
		metrics:   m,
		logger:    logging.Component(logger, "points"),
	}
}

// GetPoints computes the record for address, including its current rank. When the
// ranking cannot be built the record is returned with rank 0.
func (a *Aggregator) GetPoints(ctx context.Context, address string) (Record, error) {
	doc, err := a.activity.Get(ctx, address)
	if err != nil {
		return Record{}, fmt.Errorf("read activity: %w", err)
	}
	own := a.base(address, doc)

	referees, err := a.directory.ListReferees(ctx, address)
	if err != nil {
		return Record{}, fmt.Errorf("list referees: %w", err)
	}
	docs, err := a.activity.GetMany(ctx, referees)
	if err != nil {
		return Record{}, fmt.Errorf("read referee activity: %w", err)
	}
	var refereeEarned float64
	for _, referee := range referees {
		b := a.base(referee, docs[referee])
		refereeEarned += b.deposit + b.borrow
	}

	record := NewRecord(address, own.deposit, own.borrow, ReferralShare*refereeEarned, own.social)

	snapshot, err := a.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Record{}, err
		}
		a.logger.Warn("rank unavailable", slog.String("address", address), slog.Any("error", err))
		return record, nil
	}
	for _, ranked := range snapshot {
		if ranked.Address == address {
			record.Rank = ranked.Rank
			break
		}
	}
	return record, nil
}

// Snapshot returns every identity's record in leaderboard order with ranks
// assigned. Concurrent callers share one build; each build reads fresh data.
func (a *Aggregator) Snapshot(ctx context.Context) ([]Record, error) {
	ch := a.group.DoChan(snapshotKey, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
		defer cancel()
		return a.build(buildCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]Record)
		out := make([]Record, len(shared))
		copy(out, shared)
		return out, nil
	}
}

func (a *Aggregator) build(ctx context.Context) ([]Record, error) {
	start := time.Now()

	identities, err := a.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	docs, err := a.activity.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read activity: %w", err)
	}

	bases := make(map[string]basePoints, len(identities))
	for _, ident := range identities {
		bases[ident.Address] = a.base(ident.Address, docs[ident.Address])
	}

	referralEarned := make(map[string]float64)
	for _, ident := range identities {
		if !ident.HasReferrer() {
			continue
		}
		b := bases[ident.Address]
		referralEarned[ident.ReferredBy] += b.deposit + b.borrow
	}

	records := make([]Record, 0, len(identities))
	for _, ident := range identities {
		b := bases[ident.Address]
		records = append(records, NewRecord(ident.Address, b.deposit, b.borrow, ReferralShare*referralEarned[ident.Address], b.social))
	}
	Rank(records)

	a.metrics.SnapshotBuilt(time.Since(start))
	return records, nil
}

type basePoints struct {
	deposit float64
	borrow  float64
	social  float64
}

func (a *Aggregator) base(address string, doc []byte) basePoints {
	act, err := ParseActivity(doc)
	if err != nil {
		a.logger.Debug("activity clamped", slog.String("address", address), slog.Any("error", err))
	}
	rate := clamp(a.policy.RatePerDay)
	return basePoints{
		deposit: clamp(act.DepositUSDDays * rate),
		borrow:  clamp(act.BorrowUSDDays * rate * BorrowMultiplier),
		social:  act.SocialPoints,
	}
}
