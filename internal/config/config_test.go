package config

import (
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("SESSION_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnchorValidity != defaultAnchorValidity {
		t.Fatalf("expected anchor validity %d, got %d", defaultAnchorValidity, cfg.AnchorValidity)
	}
	if cfg.SessionSecret == "" {
		t.Fatalf("expected development session secret")
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadProductionRequiresStores(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_SECRET", "s3cret")

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing DATABASE_URL error")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("ANCHOR_VALIDITY_BLOCKS", "20")
	t.Setenv("CHALLENGE_TTL", "30s")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("POINTS_RATE_PER_DAY", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnchorValidity != 20 {
		t.Fatalf("expected 20 blocks, got %d", cfg.AnchorValidity)
	}
	if cfg.ChallengeTTL != 30*time.Second {
		t.Fatalf("expected 30s challenge ttl, got %s", cfg.ChallengeTTL)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownPeriod)
	}
	if cfg.PointsRatePerDay != 2.5 {
		t.Fatalf("expected rate 2.5, got %f", cfg.PointsRatePerDay)
	}
}

func TestLoadRejectsBadValidity(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ANCHOR_VALIDITY_BLOCKS", "zero")

	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid anchor validity error")
	}
}
