package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return rateLimit(rdb, limit, window, ipKey)
}

// WalletRateLimitMiddleware limits requests per authenticated wallet. Mount
// it after AuthMiddleware.
func WalletRateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return rateLimit(rdb, limit, window, walletKey)
}

func ipKey(c *fiber.Ctx) string {
	return "ip:" + c.IP()
}

func walletKey(c *fiber.Ctx) string {
	addr := GetAddress(c)
	if addr == (common.Address{}) {
		return ""
	}
	return "wallet:" + addr.Hex()
}

func rateLimit(rdb *redis.Client, limit int, window time.Duration, keyOf func(*fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who := keyOf(c)
		if who == "" {
			return c.Next()
		}
		key := fmt.Sprintf("rl:%s:%s", c.Path(), who)

		ctx := c.UserContext()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail open
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			c.Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
