package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mrgn-points/points_api/internal/logging"
)

func limitedApp(cache *redis.Client, perMin int) *fiber.App {
	app := fiber.New()
	app.Post("/login", AddressRateLimit(cache, perMin, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func attempt(t *testing.T, app *fiber.App, address string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"address":"`+address+`"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestAddressRateLimitWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := limitedApp(cache, 2)
	for i := 0; i < 2; i++ {
		if status := attempt(t, app, "acct-a"); status != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, status)
		}
	}
	if status := attempt(t, app, "acct-a"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
	if status := attempt(t, app, "acct-b"); status != fiber.StatusOK {
		t.Fatalf("other address must have its own budget, got %d", status)
	}
	if ttl := mr.TTL(rateLimitPrefix + "acct-a"); ttl <= 0 {
		t.Fatalf("expected counter expiry, got %v", ttl)
	}
}

func TestAddressRateLimitFallsBackInProcess(t *testing.T) {
	app := limitedApp(nil, 3)
	for i := 0; i < 3; i++ {
		if status := attempt(t, app, "acct-a"); status != fiber.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i, status)
		}
	}
	if status := attempt(t, app, "acct-a"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", status)
	}
}

func TestAddressRateLimitFailsOverWhenRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer cache.Close()
	mr.Close()

	app := limitedApp(cache, 1)
	if status := attempt(t, app, "acct-a"); status != fiber.StatusOK {
		t.Fatalf("expected 200 from fallback limiter, got %d", status)
	}
	if status := attempt(t, app, "acct-a"); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected fallback limiter to reject, got %d", status)
	}
}
