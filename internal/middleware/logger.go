package middleware

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		reqID, _ := c.Locals(CtxRequestID).(string)
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if addr, ok := c.Locals(CtxAddress).(common.Address); ok {
			fields = append(fields, zap.String("wallet", addr.Hex()))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		if status >= fiber.StatusInternalServerError {
			log.Warn("request", fields...)
		} else {
			log.Info("request", fields...)
		}
		return err
	}
}
