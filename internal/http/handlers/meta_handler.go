package handlers

import (
	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaCategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type MetaLanguage struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Interest tags a campaign can target; matched against TargetAudience.Interests.
var predefinedCategories = []MetaCategory{
	{ID: "defi", Label: "DeFi"},
	{ID: "nft", Label: "NFTs & Collectibles"},
	{ID: "dao", Label: "DAOs & Governance"},
	{ID: "gaming", Label: "Gaming"},
	{ID: "art", Label: "Art & Design"},
	{ID: "music", Label: "Music"},
	{ID: "tech", Label: "Technology"},
	{ID: "news", Label: "News & Media"},
	{ID: "education", Label: "Education"},
	{ID: "lifestyle", Label: "Lifestyle"},
	{ID: "sports", Label: "Sports"},
	{ID: "other", Label: "Other"},
}

// ISO 639-1 codes accepted in TargetAudience.Language.
var predefinedLanguages = []MetaLanguage{
	{ID: "en", Label: "English"},
	{ID: "es", Label: "Español"},
	{ID: "pt", Label: "Português"},
	{ID: "fr", Label: "Français"},
	{ID: "de", Label: "Deutsch"},
	{ID: "zh", Label: "中文"},
	{ID: "ja", Label: "日本語"},
	{ID: "ko", Label: "한국어"},
	{ID: "tr", Label: "Türkçe"},
	{ID: "ru", Label: "Русский"},
	{ID: "hi", Label: "हिन्दी"},
	{ID: "id", Label: "Bahasa Indonesia"},
}

var actionTypeLabels = map[marketplace.ActionType]string{
	marketplace.ActionMirror:  "Mirror the post",
	marketplace.ActionComment: "Comment on the post",
	marketplace.ActionQuote:   "Quote the post",
}

// GetActionTypes lists the rewardable actions a campaign can ask for.
func (h *MetaHandler) GetActionTypes(c *fiber.Ctx) error {
	out := make([]dto.ActionTypeInfo, 0, len(marketplace.AllActionTypes))
	for _, t := range marketplace.AllActionTypes {
		out = append(out, dto.ActionTypeInfo{ID: uint8(t), Name: t.String(), Label: actionTypeLabels[t]})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *MetaHandler) GetCategories(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: predefinedCategories})
}

func (h *MetaHandler) GetLanguages(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: predefinedLanguages})
}
