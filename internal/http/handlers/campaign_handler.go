package handlers

import (
	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	cmd      *services.CommandService
	query    *services.QueryService
	tx       *services.TxService
	decimals int
	log      *zap.Logger
}

func NewCampaignHandler(
	cmd *services.CommandService,
	query *services.QueryService,
	tx *services.TxService,
	decimals int,
	log *zap.Logger,
) *CampaignHandler {
	return &CampaignHandler{cmd: cmd, query: query, tx: tx, decimals: decimals, log: log}
}

// Groups

func (h *CampaignHandler) CreateGroup(c *fiber.Ctx) error {
	var req dto.CreateGroupRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.CreateCampaignGroup(c.UserContext(), middleware.GetAddress(c), req.GroupURI)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) GetGroup(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	g, err := h.query.Group(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: g})
}

func (h *CampaignHandler) GetGroupPosts(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	posts, err := h.query.GroupPosts(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: posts})
}

// Campaigns

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	actionType, err := marketplace.ParseActionType(req.ActionType)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	pool, err := parseAmount(req.Pool, h.decimals)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	rc, err := h.cmd.CreateAdCampaign(c.UserContext(), middleware.GetAddress(c), marketplace.CreateCampaignParams{
		GroupID:              req.GroupID,
		PostID:               req.PostID,
		ActionType:           actionType,
		AvailableSlots:       req.AvailableSlots,
		DisplayTime:          marketplace.TimePeriod{StartTime: req.StartTime, EndTime: req.EndTime},
		ContentURI:           req.ContentURI,
		ContentHash:          optionalHash(req.ContentHash),
		RewardClaimableTime:  req.RewardClaimableTime,
		MinFollowersRequired: req.MinFollowersRequired,
		TargetAudience: marketplace.TargetAudience{
			Country:   req.TargetAudience.Country,
			Interests: req.TargetAudience.Interests,
			Language:  req.TargetAudience.Language,
		},
		Pool: pool,
	})
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	campaign, err := h.query.Campaign(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaignInfo(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	info, err := h.query.CampaignInfo(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: info})
}

func (h *CampaignHandler) GetPostCampaign(c *fiber.Ctx) error {
	info, err := h.query.CampaignByPost(c.Params("postId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: info})
}

func (h *CampaignHandler) GetCampaignMetadata(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	m, err := h.query.CampaignMetadata(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: m})
}

func (h *CampaignHandler) GetRewardTime(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	st, err := h.query.RewardTimeStatus(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st})
}

func (h *CampaignHandler) GetCampaignEvents(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	logs, err := h.query.CampaignEvents(c.UserContext(), id, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}

func (h *CampaignHandler) GetParticipants(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	list, err := h.query.Participants(id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: list})
}

func (h *CampaignHandler) GetInfluencerActions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	addr, err := parseAddressParam(c, "addr")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	p, err := h.query.InfluencerActions(id, addr)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *CampaignHandler) GetSellerCampaigns(c *fiber.Ctx) error {
	addr, err := parseAddressParam(c, "addr")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.query.SellerCampaigns(addr)})
}

func (h *CampaignHandler) GetSellerGroups(c *fiber.Ctx) error {
	addr, err := parseAddressParam(c, "addr")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: h.query.SellerGroups(addr)})
}

// Seller writes

func (h *CampaignHandler) UpdateSlots(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.UpdateSlotsRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.UpdateCampaignSlots(c.UserContext(), middleware.GetAddress(c), id, req.AdditionalSlots)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) UpdatePrice(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.UpdatePriceRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	reward, err := parseAmount(req.RewardAmount, h.decimals)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.UpdateCampaignPrice(c.UserContext(), middleware.GetAddress(c), id, reward)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) UpdateContent(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.UpdateContentRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.UpdateCampaignContent(c.UserContext(), middleware.GetAddress(c), id, req.ContentURI, optionalHash(req.ContentHash))
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) ExtendTime(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.ExtendTimeRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.ExtendCampaignTime(c.UserContext(), middleware.GetAddress(c), id, req.EndTime, req.RewardClaimableTime)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) Cancel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.CancelCampaign(c.UserContext(), middleware.GetAddress(c), id)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) Complete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.CompleteCampaign(c.UserContext(), middleware.GetAddress(c), id)
	return respondReceipt(c, h.tx, rc, err)
}

func (h *CampaignHandler) ClaimUnfulfilled(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.ClaimUnfulfilledSlots(c.UserContext(), middleware.GetAddress(c), id)
	return respondReceipt(c, h.tx, rc, err)
}

// Influencer writes

func (h *CampaignHandler) ClaimReward(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	var req dto.ClaimRewardRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	actionType, err := marketplace.ParseActionType(req.ActionType)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	rc, err := h.cmd.ClaimReward(c.UserContext(), middleware.GetAddress(c), id, actionType, optionalAddress(req.Feed))
	return respondReceipt(c, h.tx, rc, err)
}
