package handlers

import (
	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler covers owner and fee collector operations. Permission
// checks happen in the router; the marketplace re-checks the caller.
type AdminHandler struct {
	cmd   *services.CommandService
	query *services.QueryService
	tx    *services.TxService
}

func NewAdminHandler(cmd *services.CommandService, query *services.QueryService, tx *services.TxService) *AdminHandler {
	return &AdminHandler{cmd: cmd, query: query, tx: tx}
}

func (h *AdminHandler) SetDisabled(c *fiber.Ctx) error {
	var req dto.SetDisabledRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.SetDisabled(c.UserContext(), middleware.GetAddress(c), *req.Disabled)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *AdminHandler) UpdatePlatformFee(c *fiber.Ctx) error {
	var req dto.PlatformFeeRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.UpdatePlatformFee(c.UserContext(), middleware.GetAddress(c), *req.FeeBps)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *AdminHandler) UpdateFeeCollector(c *fiber.Ctx) error {
	var req dto.AddressRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.UpdateFeeCollector(c.UserContext(), middleware.GetAddress(c), common.HexToAddress(req.Address))
	return respondReceipt(c, h.tx, rc, err)
}

func (h *AdminHandler) CollectFees(c *fiber.Ctx) error {
	rc, err := h.cmd.CollectFees(c.UserContext(), middleware.GetAddress(c))
	return respondReceipt(c, h.tx, rc, err)
}

func (h *AdminHandler) TransferOwnership(c *fiber.Ctx) error {
	var req dto.AddressRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.TransferOwnership(c.UserContext(), middleware.GetAddress(c), common.HexToAddress(req.Address))
	return respondReceipt(c, h.tx, rc, err)
}

func (h *AdminHandler) RenounceOwnership(c *fiber.Ctx) error {
	rc, err := h.cmd.RenounceOwnership(c.UserContext(), middleware.GetAddress(c))
	return respondReceipt(c, h.tx, rc, err)
}

func (h *AdminHandler) ClaimFees(c *fiber.Ctx) error {
	rc, err := h.cmd.ClaimCollectedFees(c.UserContext(), middleware.GetAddress(c))
	return respondReceipt(c, h.tx, rc, err)
}

func (h *AdminHandler) GetFees(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.query.Fees()})
}
