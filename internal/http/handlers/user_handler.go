package handlers

import (
	"context"

	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ads-marketplace/campaign-backend/internal/repositories"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DepositLister reads the on-chain deposits credited to a wallet.
type DepositLister interface {
	ListDeposits(ctx context.Context, from common.Address, limit int) ([]models.Deposit, error)
}

type UserHandler struct {
	auth     *services.AuthService
	query    *services.QueryService
	userRepo *repositories.UserRepo
	deposits DepositLister
	log      *zap.Logger
}

func NewUserHandler(
	auth *services.AuthService,
	query *services.QueryService,
	userRepo *repositories.UserRepo,
	deposits DepositLister,
	log *zap.Logger,
) *UserHandler {
	return &UserHandler{auth: auth, query: query, userRepo: userRepo, deposits: deposits, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	user := h.auth.Me(middleware.GetUserID(c), middleware.GetAddress(c))
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	if err := h.userRepo.UpdateLastActive(c.UserContext(), middleware.GetUserID(c)); err != nil {
		h.log.Warn("failed to update last active", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Balance returns the caller's ledger balance.
func (h *UserHandler) Balance(c *fiber.Ctx) error {
	amount, err := h.query.Balance(c.UserContext(), middleware.GetAddress(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: amount})
}

// Deposits lists the caller's most recent deposits, newest block first.
func (h *UserHandler) Deposits(c *fiber.Ctx) error {
	list, err := h.deposits.ListDeposits(c.UserContext(), middleware.GetAddress(c), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	if list == nil {
		list = []models.Deposit{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}
