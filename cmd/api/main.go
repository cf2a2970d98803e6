package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/config"
	"github.com/ads-marketplace/campaign-backend/internal/db"
	"github.com/ads-marketplace/campaign-backend/internal/events"
	apphttp "github.com/ads-marketplace/campaign-backend/internal/http"
	"github.com/ads-marketplace/campaign-backend/internal/http/handlers"
	"github.com/ads-marketplace/campaign-backend/internal/logger"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/metadata"
	"github.com/ads-marketplace/campaign-backend/internal/metrics"
	"github.com/ads-marketplace/campaign-backend/internal/repositories"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/ads-marketplace/campaign-backend/internal/social"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const txQueueSize = 1024

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	defer log.Sync()

	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, os.DirFS(cfg.MigrationsDir), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	nonceRepo := repositories.NewNonceRepo(pool)
	ledgerRepo := repositories.NewLedgerRepo(pool)
	marketRepo := repositories.NewMarketplaceRepo(pool)
	txRepo := repositories.NewTxReceiptRepo(pool)

	// Receipts left pending by a previous process never ran.
	if n, err := txRepo.FailPending(ctx, "server restarted before execution"); err != nil {
		log.Error("failed to fail pending receipts", zap.Error(err))
	} else if n > 0 {
		log.Warn("failed stale pending receipts", zap.Int64("count", n))
	}

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Social graph
	var graph marketplace.FollowerGraph
	if cfg.SocialGraphURL != "" {
		var fallback *social.ProfileScraper
		if cfg.SocialProfileURL != "" {
			fallback = social.NewProfileScraper(cfg.SocialProfileURL, 10*time.Second, 2, log)
		}
		graph = social.NewGraphClient(social.GraphOptions{
			BaseURL:  cfg.SocialGraphURL,
			Timeout:  10 * time.Second,
			Cache:    rdb,
			CacheTTL: cfg.FollowerCacheTTL,
			Fallback: fallback,
		}, log)
	} else {
		log.Warn("SOCIAL_GRAPH_URL is not set, campaigns with a follower minimum reject participation")
	}

	// Marketplace
	mp := marketplace.New(marketplace.Config{
		Owner:          cfg.OwnerAddress,
		FeeCollector:   cfg.FeeCollectorAddress,
		Escrow:         cfg.EscrowAddress,
		PlatformFeeBps: uint64(cfg.PlatformFeeBPS),
		DisplayFeeBps:  uint64(cfg.DisplayFeeBPS),
		ClaimPeriod:    cfg.ClaimPeriod,
	}, marketplace.Deps{
		Ledger: ledgerRepo,
		Graph:  graph,
		Router: marketplace.NewStaticRouter(cfg.ActionRouterAddresses...),
		Store:  marketRepo,
		Sink:   metrics.NewSink(events.NewMarketplaceSink(publisher, log)),
	}, log)

	snapshot, err := marketRepo.Load(ctx)
	if err != nil {
		log.Fatal("failed to load marketplace state", zap.Error(err))
	}
	if err := mp.Restore(snapshot); err != nil {
		log.Fatal("failed to restore marketplace state", zap.Error(err))
	}

	// Metadata
	resolver, err := metadata.NewResolver(ctx, metadata.Options{
		GatewayURL: cfg.MetadataGatewayURL,
		Timeout:    time.Duration(cfg.MetadataFetchTimeoutMS) * time.Millisecond,
		MaxRetries: cfg.MetadataFetchMaxRetries,
		RPS:        cfg.MetadataRPS,
		CacheTTL:   cfg.MetadataCacheTTL,
		Redis:      rdb,
	}, log)
	if err != nil {
		log.Fatal("failed to create metadata resolver", zap.Error(err))
	}
	defer resolver.Close()

	// Services
	txService := services.NewTxService(txRepo, publisher, txQueueSize, log)
	go txService.Run(ctx)

	commandService := services.NewCommandService(mp, txService, resolver)
	queryService := services.NewQueryService(mp, ledgerRepo, resolver, auditRepo, cfg.TokenSymbol, cfg.TokenDecimals)
	authService := services.NewAuthService(nonceRepo, userRepo, auditRepo, mp, cfg.JWTSecret, cfg.JWTExpiration, cfg.LoginNonceTTL, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg.JWTSecret, subscriber, log)
	h := apphttp.Handlers{
		Auth:     handlers.NewAuthHandler(authService, log),
		User:     handlers.NewUserHandler(authService, queryService, userRepo, ledgerRepo, log),
		Campaign: handlers.NewCampaignHandler(commandService, queryService, txService, cfg.TokenDecimals, log),
		Action:   handlers.NewActionHandler(commandService, txService),
		Admin:    handlers.NewAdminHandler(commandService, queryService, txService),
		Tx:       handlers.NewTxHandler(txService),
		Meta:     handlers.NewMetaHandler(),
		WS:       wsHub,
	}

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, mp, h)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		_ = app.Shutdown()
		cancel()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
