package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"

	"github.com/mrgn-points/points_api/internal/config"
	"github.com/mrgn-points/points_api/internal/infra"
	"github.com/mrgn-points/points_api/internal/logging"
	"github.com/mrgn-points/points_api/internal/points"
)

// ingest loads activity documents into Postgres. Input is a JSON object keyed by
// account address, each value being that account's activity document:
//
//	{"<address>": {"deposit_usd_days": 1200.5, "borrow_usd_days": 30, "social_points": 10}}
func main() {
	path := flag.String("file", "-", "activity JSON file, - for stdin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	raw, err := readInput(*path)
	if err != nil {
		logger.Error("read input", "error", err)
		os.Exit(1)
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		logger.Error("input must be a JSON object keyed by address")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := infra.EnsureSchema(ctx, db); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	repo := points.NewPostgresActivityRepository(db)
	var stored, skipped int
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		address := key.String()
		if !value.IsObject() {
			logger.Warn("skipping non-object document", "address", address)
			skipped++
			return true
		}
		if _, err := points.ParseActivity([]byte(value.Raw)); err != nil {
			logger.Warn("document has malformed fields, they will read as zero", "address", address, "error", err)
		}
		if err := repo.Upsert(ctx, address, []byte(value.Raw)); err != nil {
			logger.Error("upsert activity", "address", address, "error", err)
			skipped++
			return true
		}
		stored++
		return true
	})

	logger.Info("ingest finished", "stored", stored, "skipped", skipped)
	if skipped > 0 {
		os.Exit(2)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
