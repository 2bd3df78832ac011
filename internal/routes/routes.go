package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mrgn-points/points_api/internal/auth"
	"github.com/mrgn-points/points_api/internal/authproof"
	"github.com/mrgn-points/points_api/internal/config"
	"github.com/mrgn-points/points_api/internal/identity"
	"github.com/mrgn-points/points_api/internal/leaderboard"
	"github.com/mrgn-points/points_api/internal/metrics"
	"github.com/mrgn-points/points_api/internal/middleware"
	"github.com/mrgn-points/points_api/internal/notification"
	"github.com/mrgn-points/points_api/internal/points"
	"github.com/mrgn-points/points_api/internal/referral"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// Anchors overrides the ledger anchor source; nil picks one from Cfg.
	Anchors authproof.AnchorSource
	// Activity overrides the activity repository; nil picks one from DB.
	Activity points.ActivityRepository
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	m := metrics.New(d.Registry)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	// Storage
	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}
	activity := d.Activity
	if activity == nil {
		if d.DB != nil {
			activity = points.NewPostgresActivityRepository(d.DB)
		} else {
			activity = points.NewMemoryActivityRepository()
		}
	}
	var challenges authproof.ChallengeStore
	if d.Cache != nil {
		challenges = authproof.NewRedisChallengeStore(d.Cache)
	} else {
		challenges = authproof.NewMemoryStore()
	}
	anchors := d.Anchors
	if anchors == nil {
		if d.Cfg.RPCURL != "" {
			anchors = authproof.NewRPCAnchorSource(d.Cfg.RPCURL)
		} else {
			anchors = authproof.NewLocalLedger(d.Cfg.LocalSlotDuration)
		}
	}

	// Services and handlers
	notifier := notification.NewLoggerNotifier(d.Logger)
	referrals := referral.NewLedger(identityRepo, notifier, d.Logger)
	identitySvc := identity.NewService(identityRepo, referrals, d.Logger)
	verifier := authproof.NewVerifier(anchors, challenges, authproof.Options{
		AppName:  d.Cfg.AppName,
		Validity: d.Cfg.AnchorValidity,
		TTL:      d.Cfg.ChallengeTTL,
		Logger:   d.Logger,
	})
	tokens, err := auth.NewService(d.Cfg, identityRepo)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	aggregator := points.NewAggregator(activity, identityRepo, points.Policy{RatePerDay: d.Cfg.PointsRatePerDay}, m, d.Logger)
	board := leaderboard.NewService(aggregator, m, d.Logger)

	authHandler := auth.NewHandler(verifier, identitySvc, tokens, m, d.Logger)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	session := middleware.SessionAuth(tokens)
	RegisterAuthRoutes(api, authHandler, AuthMiddlewares{
		RateLimit:   middleware.AddressRateLimit(d.Cache, d.Cfg.LoginRateLimit, d.Logger),
		Idempotency: middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
		Session:     session,
	})
	RegisterIdentityRoutes(api, identity.NewHandler(identitySvc))
	RegisterPointsRoutes(api, points.NewHandler(aggregator, identitySvc, d.Cfg.ReferralBaseURL))
	RegisterLeaderboardRoutes(api, leaderboard.NewHandler(board))

	// Protected routes
	protected := api.Group("", session)
	protected.Get("/me", authHandler.Me)

	return nil
}
