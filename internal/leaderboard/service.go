package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mrgn-points/points_api/internal/logging"
	"github.com/mrgn-points/points_api/internal/metrics"
	"github.com/mrgn-points/points_api/internal/points"
)

// Snapshotter returns every record in leaderboard order.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]points.Record, error)
}

// Service pages through the ranking. Each fetch reads a fresh snapshot, so rows can
// shift between pages; the cursor keys on the last row's sort position rather than
// an offset.
type Service struct {
	source  Snapshotter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService builds a leaderboard service. m may be nil.
func NewService(source Snapshotter, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{source: source, metrics: m, logger: logging.Component(logger, "leaderboard")}
}

// FetchPage returns up to size rows after cursor. An empty cursor starts at rank 1.
func (s *Service) FetchPage(ctx context.Context, cursor string, size int) (Page, error) {
	size = ClampPageSize(size)

	start := 0
	var pos position
	if cursor != "" {
		var err error
		if pos, err = decodeCursor(cursor); err != nil {
			return Page{}, err
		}
	}

	ranked, err := s.source.Snapshot(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("load ranking: %w", err)
	}
	if cursor != "" {
		start = sort.Search(len(ranked), func(i int) bool { return pos.after(ranked[i]) })
	}

	end := start + size
	if end > len(ranked) {
		end = len(ranked)
	}
	page := Page{Entries: append([]points.Record{}, ranked[start:end]...)}
	if end < len(ranked) && len(page.Entries) > 0 {
		if page.NextCursor, err = encodeCursor(page.Entries[len(page.Entries)-1]); err != nil {
			return Page{}, err
		}
	}

	s.metrics.LeaderboardPage()
	s.logger.Debug("page served", slog.Int("start", start), slog.Int("rows", len(page.Entries)))
	return page, nil
}
