package http

import (
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/config"
	"github.com/ads-marketplace/campaign-backend/internal/http/handlers"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/rbac"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Campaign *handlers.CampaignHandler
	Action   *handlers.ActionHandler
	Admin    *handlers.AdminHandler
	Tx       *handlers.TxHandler
	Meta     *handlers.MetaHandler
	WS       *handlers.WSHub
}

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	roles rbac.Directory,
	h Handlers,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(middleware.MetricsMiddleware())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	// Every endpoint is limited per IP
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitRPM, time.Minute))

	// Auth (public)
	api.Post("/auth/nonce", h.Auth.Nonce)
	api.Post("/auth/wallet", h.Auth.WalletLogin)

	// Meta (public, no auth required)
	api.Get("/meta/action-types", h.Meta.GetActionTypes)
	api.Get("/meta/categories", h.Meta.GetCategories)
	api.Get("/meta/languages", h.Meta.GetLanguages)

	// Protected endpoints
	protected := api.Group("",
		middleware.AuthMiddleware(cfg.JWTSecret, log),
		middleware.WalletRateLimitMiddleware(rdb, cfg.RateLimitRPM, time.Minute),
	)

	// User
	protected.Get("/me", h.User.GetMe)
	protected.Post("/me/ping", h.User.Ping)
	protected.Get("/me/balance", h.User.Balance)
	protected.Get("/me/deposits", h.User.Deposits)

	// Groups
	protected.Post("/groups", middleware.RequirePermission(roles, rbac.PermManageCampaign), h.Campaign.CreateGroup)
	protected.Get("/groups/:id", h.Campaign.GetGroup)
	protected.Get("/groups/:id/posts", h.Campaign.GetGroupPosts)

	// Campaigns
	seller := middleware.RequirePermission(roles, rbac.PermManageCampaign)
	protected.Post("/campaigns", seller, h.Campaign.CreateCampaign)
	protected.Get("/campaigns/:id", h.Campaign.GetCampaign)
	protected.Get("/campaigns/:id/info", h.Campaign.GetCampaignInfo)
	protected.Get("/campaigns/:id/metadata", h.Campaign.GetCampaignMetadata)
	protected.Get("/campaigns/:id/reward-time", h.Campaign.GetRewardTime)
	protected.Get("/campaigns/:id/events", h.Campaign.GetCampaignEvents)
	protected.Get("/campaigns/:id/participants", h.Campaign.GetParticipants)
	protected.Get("/campaigns/:id/influencers/:addr", h.Campaign.GetInfluencerActions)
	protected.Post("/campaigns/:id/slots", seller, h.Campaign.UpdateSlots)
	protected.Post("/campaigns/:id/price", seller, h.Campaign.UpdatePrice)
	protected.Post("/campaigns/:id/content", seller, h.Campaign.UpdateContent)
	protected.Post("/campaigns/:id/extend", seller, h.Campaign.ExtendTime)
	protected.Post("/campaigns/:id/cancel", seller, h.Campaign.Cancel)
	protected.Post("/campaigns/:id/complete", seller, h.Campaign.Complete)
	protected.Post("/campaigns/:id/claim-unfulfilled",
		middleware.RequirePermission(roles, rbac.PermClaimUnfulfilled), h.Campaign.ClaimUnfulfilled)
	protected.Post("/campaigns/:id/claim",
		middleware.RequirePermission(roles, rbac.PermClaimReward), h.Campaign.ClaimReward)

	// Posts
	protected.Get("/posts/:postId/campaign", h.Campaign.GetPostCampaign)

	// Sellers
	protected.Get("/sellers/:addr/campaigns", h.Campaign.GetSellerCampaigns)
	protected.Get("/sellers/:addr/groups", h.Campaign.GetSellerGroups)

	// Action routers
	protected.Post("/actions/execute", middleware.RequirePermission(roles, rbac.PermExecuteAction), h.Action.Execute)
	protected.Post("/actions/configure", middleware.RequirePermission(roles, rbac.PermConfigureAction), h.Action.Configure)

	// Fees
	protected.Get("/fees", h.Admin.GetFees)
	protected.Post("/fees/claim", middleware.RequirePermission(roles, rbac.PermClaimFees), h.Admin.ClaimFees)

	// Admin
	admin := protected.Group("/admin", middleware.RequirePermission(roles, rbac.PermAdmin))
	admin.Post("/disabled", h.Admin.SetDisabled)
	admin.Post("/platform-fee", h.Admin.UpdatePlatformFee)
	admin.Post("/fee-collector", h.Admin.UpdateFeeCollector)
	admin.Post("/collect-fees", h.Admin.CollectFees)
	admin.Post("/ownership", h.Admin.TransferOwnership)
	admin.Post("/renounce", h.Admin.RenounceOwnership)

	// Transactions
	protected.Get("/tx/:id", h.Tx.GetTx)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WS.HandleWS))
}
