package middleware

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimit allows at most limit requests per client IP and route within a
// fixed window, counted in Redis. A nil client disables limiting, and Redis
// errors let the request through.
func RateLimit(client *redis.Client, limit int, window time.Duration) fiber.Handler {
	if client == nil || limit <= 0 || window <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("ratelimit:%s:%s:%d", c.Path(), c.IP(), bucket)

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("Rate limiter unavailable, allowing request: %v", err)
			return c.Next()
		}
		if count == 1 {
			if err := client.Expire(ctx, key, window).Err(); err != nil {
				log.Printf("Failed to set rate limit expiry for %s: %v", key, err)
			}
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many requests, please try again later",
			})
		}
		return c.Next()
	}
}
