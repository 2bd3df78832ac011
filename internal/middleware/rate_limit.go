package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const rateLimitPrefix = "rl:auth:"

// AddressRateLimit limits requests per account address (or client IP when the body
// has none) to maxPerMin. Counters live in Redis when available; without Redis, or
// when Redis fails, an in-process token bucket per key takes over.
func AddressRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	local := newLocalLimiter(maxPerMin)

	return func(c *fiber.Ctx) error {
		var req struct {
			Address string `json:"address"`
		}
		_ = c.BodyParser(&req)
		key := strings.TrimSpace(req.Address)
		if key == "" {
			key = c.IP()
		}

		if cache != nil {
			ctx := c.UserContext()
			cnt, err := cache.Incr(ctx, rateLimitPrefix+key).Result()
			if err == nil {
				if cnt == 1 {
					cache.Expire(ctx, rateLimitPrefix+key, time.Minute)
				}
				if cnt > int64(maxPerMin) {
					return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
				}
				return c.Next()
			}
			if logger != nil {
				logger.Warn("rate limit store unavailable", slog.Any("error", err))
			}
		}

		if !local.allow(key) {
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}

type localLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, limiters: make(map[string]*rate.Limiter)}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
