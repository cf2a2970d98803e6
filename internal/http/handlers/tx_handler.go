package handlers

import (
	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TxHandler struct {
	tx *services.TxService
}

func NewTxHandler(tx *services.TxService) *TxHandler {
	return &TxHandler{tx: tx}
}

// GetTx returns a receipt. Callers only see their own submissions.
func (h *TxHandler) GetTx(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid tx id")
	}
	rc, err := h.tx.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if rc.Caller != middleware.GetAddress(c).Hex() {
		return fail(c, fiber.StatusNotFound, "not found")
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rc})
}
