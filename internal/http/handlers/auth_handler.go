package handlers

import (
	"errors"

	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth *services.AuthService
	log  *zap.Logger
}

func NewAuthHandler(auth *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

// Nonce issues a one-time message for the wallet to sign.
func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	var req dto.NonceRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	challenge, err := h.auth.Challenge(c.UserContext(), common.HexToAddress(req.Address))
	if err != nil {
		h.log.Error("failed to issue login nonce", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "failed to issue nonce")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: challenge})
}

func (h *AuthHandler) WalletLogin(c *fiber.Ctx) error {
	var req dto.WalletLoginRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	res, err := h.auth.Login(c.UserContext(), common.HexToAddress(req.Address), req.Nonce, req.Signature)
	if errors.Is(err, services.ErrLoginRejected) {
		return fail(c, fiber.StatusUnauthorized, "invalid signature or nonce")
	}
	if err != nil {
		h.log.Error("wallet login failed", zap.Error(err))
		return fail(c, fiber.StatusInternalServerError, "authentication failed")
	}

	return c.JSON(dto.AuthResponse{Token: res.Token, User: res.User})
}
