package handlers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/chain"
	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

const waitTimeout = 15 * time.Second

var codeStatus = map[string]int{
	services.CodeInvalidMsgSender:     fiber.StatusForbidden,
	services.CodeInvalidParameter:     fiber.StatusBadRequest,
	services.CodeRedundantStateChange: fiber.StatusConflict,
	services.CodeNotFound:             fiber.StatusNotFound,
	services.CodeInsufficientBalance:  fiber.StatusPaymentRequired,
}

func statusForCode(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, status int, msg string) error {
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg, RequestID: reqID})
}

// respondError maps marketplace errors onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fail(c, fiber.StatusNotFound, "not found")
	}
	code := services.ErrorCode(err)
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	msg := err.Error()
	if code == services.CodeInternal {
		msg = "internal error"
	}
	return c.Status(statusForCode(code)).JSON(dto.ErrorResponse{Error: msg, Code: code, RequestID: reqID})
}

// respondReceipt answers a submitted write with 202 and the pending
// receipt. With ?wait=true it blocks until the write has executed.
func respondReceipt(c *fiber.Ctx, tx *services.TxService, rc *models.TxReceipt, err error) error {
	if errors.Is(err, services.ErrQueueFull) {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to submit transaction")
	}
	if !c.QueryBool("wait") {
		return c.Status(fiber.StatusAccepted).JSON(dto.SuccessResponse{OK: true, Data: rc})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), waitTimeout)
	defer cancel()
	final, err := tx.Wait(ctx, rc.ID)
	if err != nil {
		// still pending; the client polls /tx/:id
		return c.Status(fiber.StatusAccepted).JSON(dto.SuccessResponse{OK: true, Data: rc})
	}
	if final.Status == models.TxStatusFailed && final.ErrorCode != nil {
		return c.Status(statusForCode(*final.ErrorCode)).JSON(dto.SuccessResponse{OK: false, Data: final})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: final})
}

func parseUintParam(c *fiber.Ctx, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

func parseAddressParam(c *fiber.Ctx, name string) (common.Address, error) {
	addr, err := chain.ParseAddress(c.Params(name))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid %s", name)
	}
	return addr, nil
}

// parseBody decodes and validates the JSON body into req.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errors.New("invalid request body")
	}
	return dto.Validate(req)
}

func optionalAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func optionalHash(s string) common.Hash {
	if s == "" {
		return common.Hash{}
	}
	return common.HexToHash(s)
}

func parseAmount(s string, decimals int) (*big.Int, error) {
	return chain.ParseUnits(s, decimals)
}
