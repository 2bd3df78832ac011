package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "mrgn points"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultAccessTokenTTL   = 15 * time.Minute
	defaultRefreshTokenTTL  = 7 * 24 * time.Hour
	defaultChallengeTTL     = 2 * time.Minute
	defaultSlotDuration     = 400 * time.Millisecond
	defaultAnchorValidity   = 150
	defaultPointsRate       = 1.0
	defaultLoginRateLimit   = 10
	defaultReferralBaseURL  = "https://app.marginfi.com/refer/"
	devSessionSecret        = "dev-session-secret-change-me"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar        = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	anchorValidityEnvVar    = "ANCHOR_VALIDITY_BLOCKS"
	pointsRateEnvVar        = "POINTS_RATE_PER_DAY"
	loginRateLimitEnvVar    = "LOGIN_RATE_LIMIT_PER_MIN"
	accessTokenTTLEnvVar    = "ACCESS_TOKEN_TTL"
	refreshTokenTTLEnvVar   = "REFRESH_TOKEN_TTL"
	challengeTTLEnvVar      = "CHALLENGE_TTL"
	localSlotDurationEnvVar = "LOCAL_SLOT_DURATION"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	SessionSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RPCURL points at a JSON-RPC ledger node used for freshness anchors. When empty
	// a local ledger clock is used instead.
	RPCURL            string
	AnchorValidity    uint64
	ChallengeTTL      time.Duration
	LocalSlotDuration time.Duration

	PointsRatePerDay float64
	ReferralBaseURL  string
	LoginRateLimit   int
}

// Load reads configuration values from the environment and populates a Config instance.
// A .env file in the working directory is applied first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:           getEnv("APP_NAME", defaultAppName),
		Env:               strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:              getEnv("PORT", defaultPort),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		ShutdownPeriod:    defaultShutdownDelay,
		IdempotencyTTL:    defaultIdempotencyTTL,
		SessionSecret:     os.Getenv("SESSION_SECRET"),
		AccessTokenTTL:    defaultAccessTokenTTL,
		RefreshTokenTTL:   defaultRefreshTokenTTL,
		RPCURL:            os.Getenv("RPC_URL"),
		AnchorValidity:    defaultAnchorValidity,
		ChallengeTTL:      defaultChallengeTTL,
		LocalSlotDuration: defaultSlotDuration,
		PointsRatePerDay:  defaultPointsRate,
		ReferralBaseURL:   getEnv("REFERRAL_BASE_URL", defaultReferralBaseURL),
		LoginRateLimit:    defaultLoginRateLimit,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = durationFromEnv("", accessTokenTTLEnvVar, cfg.AccessTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = durationFromEnv("", refreshTokenTTLEnvVar, cfg.RefreshTokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.ChallengeTTL, err = durationFromEnv("", challengeTTLEnvVar, cfg.ChallengeTTL); err != nil {
		return Config{}, err
	}
	if cfg.LocalSlotDuration, err = durationFromEnv("", localSlotDurationEnvVar, cfg.LocalSlotDuration); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(anchorValidityEnvVar); v != "" {
		blocks, err := strconv.ParseUint(v, 10, 64)
		if err != nil || blocks == 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", anchorValidityEnvVar, v)
		}
		cfg.AnchorValidity = blocks
	}

	if v := os.Getenv(pointsRateEnvVar); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate < 0 {
			return Config{}, fmt.Errorf("invalid %s: %q", pointsRateEnvVar, v)
		}
		cfg.PointsRatePerDay = rate
	}

	if v := os.Getenv(loginRateLimitEnvVar); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", loginRateLimitEnvVar, err)
		}
		cfg.LoginRateLimit = n
	}

	if cfg.IsDev() {
		if cfg.SessionSecret == "" {
			cfg.SessionSecret = devSessionSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the service runs in a development environment, where
// Postgres and Redis are optional.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// durationFromEnv reads a whole-seconds variable first, then a Go duration string.
func durationFromEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if secondsKey != "" {
		if v := os.Getenv(secondsKey); v != "" {
			seconds, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
