package points

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	fieldDepositUSDDays = "deposit_usd_days"
	fieldBorrowUSDDays  = "borrow_usd_days"
	fieldSocialPoints   = "social_points"
)

// Activity is the accrual input for one account: dollar-days lent and borrowed plus
// social points granted off-chain.
type Activity struct {
	DepositUSDDays float64
	BorrowUSDDays  float64
	SocialPoints   float64
}

// ParseActivity reads an activity document tolerantly. Missing fields are zero.
// Negative, non-numeric or non-finite fields are zeroed and reported through an
// ErrMalformedRecord error; the returned Activity is always usable.
func ParseActivity(doc []byte) (Activity, error) {
	if len(doc) == 0 {
		return Activity{}, nil
	}
	if !gjson.ValidBytes(doc) {
		return Activity{}, fmt.Errorf("%w: invalid json", ErrMalformedRecord)
	}

	var bad []string
	read := func(field string) float64 {
		v, ok := numberField(gjson.GetBytes(doc, field))
		if !ok {
			bad = append(bad, field)
		}
		return v
	}

	a := Activity{
		DepositUSDDays: read(fieldDepositUSDDays),
		BorrowUSDDays:  read(fieldBorrowUSDDays),
		SocialPoints:   read(fieldSocialPoints),
	}
	if len(bad) > 0 {
		return a, fmt.Errorf("%w: %s", ErrMalformedRecord, strings.Join(bad, ", "))
	}
	return a, nil
}

func numberField(res gjson.Result) (float64, bool) {
	var v float64
	switch res.Type {
	case gjson.Null:
		return 0, true
	case gjson.Number:
		v = res.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(res.Str), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
