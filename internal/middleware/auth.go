package middleware

import (
	"strings"

	"github.com/ads-marketplace/campaign-backend/internal/auth"
	"github.com/ads-marketplace/campaign-backend/internal/rbac"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CtxUserID  = "user_id"
	CtxAddress = "address"
)

func AuthMiddleware(secret string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing or invalid authorization header"})
		}

		claims, err := auth.ParseJWT(secret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxAddress, claims.Wallet())

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get("Authorization")
	tok := strings.TrimPrefix(h, "Bearer ")
	if tok == h {
		return ""
	}
	return tok
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

func GetAddress(c *fiber.Ctx) common.Address {
	addr, _ := c.Locals(CtxAddress).(common.Address)
	return addr
}

// RequirePermission rejects callers whose roles lack permission. The
// marketplace checks again when the write executes.
func RequirePermission(dir rbac.Directory, permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rbac.Can(dir, GetAddress(c), permission) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": permission + " access required"})
		}
		return c.Next()
	}
}
