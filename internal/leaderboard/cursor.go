package leaderboard

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mrgn-points/points_api/internal/points"
)

// position is the sort key of the last row of a page.
type position struct {
	Total   float64 `json:"t"`
	Address string  `json:"a"`
}

func encodeCursor(r points.Record) (string, error) {
	raw, err := json.Marshal(position{Total: r.TotalPoints, Address: r.Address})
	if err != nil {
		return "", fmt.Errorf("encode cursor for %s: %w", r.Address, err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(cursor string) (position, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return position{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var pos position
	if err := json.Unmarshal(raw, &pos); err != nil {
		return position{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if pos.Address == "" || pos.Total < 0 || math.IsNaN(pos.Total) {
		return position{}, ErrInvalidCursor
	}
	return pos, nil
}

// after reports whether r sorts strictly after the cursor position.
func (p position) after(r points.Record) bool {
	return points.Less(points.Record{Address: p.Address, TotalPoints: p.Total}, r)
}
