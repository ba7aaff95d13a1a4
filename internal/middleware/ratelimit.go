package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter in Redis, keyed per caller.
type RateLimiter struct {
	Redis  *redis.Client
	Prefix string
	Limit  int
	Window time.Duration
}

func NewRateLimiter(r *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{Redis: r, Prefix: prefix, Limit: limit, Window: window}
}

func (r *RateLimiter) ByKey(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("%s:%s", r.Prefix, keyFunc(c))
		ctx := c.UserContext()

		count, err := r.Redis.Incr(ctx, key).Result()
		if err != nil {
			// fail open when redis is unreachable
			return c.Next()
		}
		if count == 1 {
			r.Redis.Expire(ctx, key, r.Window)
		}
		if count > int64(r.Limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
