package points

import (
	"errors"
	"math"
	"sort"
)

const (
	// BorrowMultiplier scales the per-day rate for borrowed value.
	BorrowMultiplier = 4.0
	// ReferralShare is the fraction of a referee's deposit and borrow points credited
	// to the referrer.
	ReferralShare = 0.10
	// MaxComponentPoints caps each component so the sum of all four stays finite.
	MaxComponentPoints = math.MaxFloat64 / 8
)

// ErrMalformedRecord reports unusable fields in an activity document. It is absorbed
// by clamping the fields to zero and never returned to callers of the aggregator.
var ErrMalformedRecord = errors.New("malformed points record")

// Record is the per-identity points breakdown. Components are never negative and
// TotalPoints is always their sum.
type Record struct {
	Address        string  `json:"address"`
	DepositPoints  float64 `json:"deposit_points"`
	BorrowPoints   float64 `json:"borrow_points"`
	ReferralPoints float64 `json:"referral_points"`
	SocialPoints   float64 `json:"social_points"`
	TotalPoints    float64 `json:"total_points"`
	// Rank is derived from the leaderboard ordering; zero when unknown.
	Rank int `json:"rank"`
}

// NewRecord clamps each component and derives the total, which is always finite.
func NewRecord(address string, deposit, borrow, referral, social float64) Record {
	r := Record{
		Address:        address,
		DepositPoints:  clamp(deposit),
		BorrowPoints:   clamp(borrow),
		ReferralPoints: clamp(referral),
		SocialPoints:   clamp(social),
	}
	r.TotalPoints = r.DepositPoints + r.BorrowPoints + r.ReferralPoints + r.SocialPoints
	return r
}

// WithRank returns a copy of r carrying rank.
func (r Record) WithRank(rank int) Record {
	r.Rank = rank
	return r
}

// Default is the zeroed record shown before any data is available.
func Default(address string) Record {
	return NewRecord(address, 0, 0, 0, 0)
}

// Less orders records by total points descending, then address ascending, which is
// a total order.
func Less(a, b Record) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	return a.Address < b.Address
}

// Rank sorts records in leaderboard order and assigns 1-based ranks in place.
func Rank(records []Record) []Record {
	sort.Slice(records, func(i, j int) bool { return Less(records[i], records[j]) })
	for i := range records {
		records[i].Rank = i + 1
	}
	return records
}

// clamp zeroes NaN and negative values and saturates overflow at MaxComponentPoints.
func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > MaxComponentPoints:
		return MaxComponentPoints
	}
	return v
}
