package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrgn-points/points_api/internal/apiclient"
	"github.com/mrgn-points/points_api/internal/leaderboard"
	"github.com/mrgn-points/points_api/internal/logging"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "points API base URL")
		pageSize = flag.Int("page-size", leaderboard.DefaultPageSize, "rows per page")
		maxPages = flag.Int("pages", 0, "stop after this many pages (0 = all)")
		timeout  = flag.Duration("timeout", 10*time.Second, "per request timeout")
		retries  = flag.Int("retries", 3, "retries per page on network failures")
		logLevel = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	logger := logging.NewWithWriter(os.Stderr, *logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(*baseURL, apiclient.WithTimeout(*timeout))
	pager := leaderboard.NewPaginator(client, leaderboard.WithPageSize(*pageSize))
	defer pager.Close()

	fmt.Printf("%-6s %-44s %14s %14s %14s %14s %14s\n", "RANK", "ADDRESS", "TOTAL", "DEPOSIT", "BORROW", "REFERRAL", "SOCIAL")
	for pages := 0; *maxPages == 0 || pages < *maxPages; pages++ {
		page, err := nextWithRetry(ctx, pager, *retries)
		if errors.Is(err, leaderboard.ErrExhausted) {
			break
		}
		if err != nil {
			logger.Error("fetch page", "error", err)
			os.Exit(1)
		}
		for _, row := range page.Entries {
			fmt.Printf("%-6d %-44s %14.2f %14.2f %14.2f %14.2f %14.2f\n",
				row.Rank, row.Address, row.TotalPoints, row.DepositPoints, row.BorrowPoints, row.ReferralPoints, row.SocialPoints)
		}
		if pager.Done() {
			break
		}
	}
	logger.Info("leaderboard printed", "rows", len(pager.Rows()))
}

// nextWithRetry retries transient fetch failures with exponential backoff.
func nextWithRetry(ctx context.Context, pager *leaderboard.Paginator, retries int) (leaderboard.Page, error) {
	backoff := 250 * time.Millisecond
	for attempt := 0; ; attempt++ {
		page, err := pager.Next(ctx)
		transient := errors.Is(err, leaderboard.ErrNetworkFailure) || errors.Is(err, leaderboard.ErrTimeout)
		if !transient || attempt >= retries {
			return page, err
		}
		select {
		case <-ctx.Done():
			return leaderboard.Page{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
