package handlers

import (
	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
)

// ActionHandler receives calls forwarded by action routers.
type ActionHandler struct {
	cmd *services.CommandService
	tx  *services.TxService
}

func NewActionHandler(cmd *services.CommandService, tx *services.TxService) *ActionHandler {
	return &ActionHandler{cmd: cmd, tx: tx}
}

func (h *ActionHandler) Execute(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.Execute(c.UserContext(), middleware.GetAddress(c), req)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *ActionHandler) Configure(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.Configure(c.UserContext(), middleware.GetAddress(c), req)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *ActionHandler) parse(c *fiber.Ctx) (marketplace.ActionRequest, error) {
	var body dto.ActionRequest
	if err := parseBody(c, &body); err != nil {
		return marketplace.ActionRequest{}, err
	}
	return toActionRequest(body)
}

func toActionRequest(body dto.ActionRequest) (marketplace.ActionRequest, error) {
	req := marketplace.ActionRequest{
		OriginalMsgSender: common.HexToAddress(body.OriginalMsgSender),
		Feed:              optionalAddress(body.Feed),
		PostID:            body.PostID,
	}
	for _, p := range body.Params {
		value := []byte{}
		if p.Value != "" {
			v, err := hexutil.Decode(p.Value)
			if err != nil {
				return marketplace.ActionRequest{}, err
			}
			value = v
		}
		req.Params = append(req.Params, marketplace.KeyValue{Key: common.HexToHash(p.Key), Value: value})
	}
	if body.ActionType != "" {
		t, err := marketplace.ParseActionType(body.ActionType)
		if err != nil {
			return marketplace.ActionRequest{}, err
		}
		req.Params = append(req.Params, marketplace.EncodeActionTypeParam(t))
	}
	return req, nil
}
