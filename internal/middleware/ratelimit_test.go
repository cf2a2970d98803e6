package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/auth"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateLimitKeys(t *testing.T) {
	const secret = "secret"
	wallet := common.HexToAddress("0x1111111111111111111111111111111111111111")

	app := fiber.New()
	app.Get("/public", func(c *fiber.Ctx) error {
		return c.SendString(ipKey(c) + "|" + walletKey(c))
	})
	app.Get("/private", AuthMiddleware(secret, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendString(walletKey(c))
	})

	get := func(path, token string) string {
		req := httptest.NewRequest("GET", path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	tok, err := auth.GenerateJWT(secret, uuid.New(), wallet, time.Hour)
	require.NoError(t, err)

	// before auth there is no wallet, so only the IP key applies
	public := get("/public", tok)
	assert.True(t, strings.HasPrefix(public, "ip:"), public)
	assert.True(t, strings.HasSuffix(public, "|"), public)
	assert.Equal(t, "wallet:"+wallet.Hex(), get("/private", tok))
}
