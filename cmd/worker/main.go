package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/chain"
	"github.com/ads-marketplace/campaign-backend/internal/config"
	"github.com/ads-marketplace/campaign-backend/internal/db"
	"github.com/ads-marketplace/campaign-backend/internal/events"
	"github.com/ads-marketplace/campaign-backend/internal/logger"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/metadata"
	"github.com/ads-marketplace/campaign-backend/internal/metrics"
	"github.com/ads-marketplace/campaign-backend/internal/repositories"
	"github.com/ads-marketplace/campaign-backend/internal/social"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	redisClaimCursor   = "worker:claim-notice:cursor"
	redisClaimNotified = "worker:claim-notice:sent:"
	claimNotifiedTTL   = 7 * 24 * time.Hour
	activeUserWindow   = 7 * 24 * time.Hour
	jobTimeout         = 10 * time.Minute
)

// worker runs scheduled maintenance jobs against a read-only copy of the
// marketplace state, reloaded from postgres before each job.
type worker struct {
	cfg        *config.Config
	rdb        *redis.Client
	mp         *marketplace.Marketplace
	marketRepo *repositories.MarketplaceRepo
	userRepo   *repositories.UserRepo
	nonceRepo  *repositories.NonceRepo
	graph      *social.GraphClient
	resolver   *metadata.Resolver
	publisher  events.Publisher
	log        *zap.Logger
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns), log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

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

	w := &worker{
		cfg:        cfg,
		rdb:        rdb,
		mp:         marketplace.New(marketplace.Config{Owner: cfg.OwnerAddress, ClaimPeriod: cfg.ClaimPeriod}, marketplace.Deps{}, log),
		marketRepo: repositories.NewMarketplaceRepo(pool),
		userRepo:   repositories.NewUserRepo(pool),
		nonceRepo:  repositories.NewNonceRepo(pool),
		resolver:   resolver,
		publisher:  events.NewRedisPublisher(rdb, log),
		log:        log,
	}
	if cfg.SocialGraphURL != "" {
		var fallback *social.ProfileScraper
		if cfg.SocialProfileURL != "" {
			fallback = social.NewProfileScraper(cfg.SocialProfileURL, 10*time.Second, 2, log)
		}
		w.graph = social.NewGraphClient(social.GraphOptions{
			BaseURL:  cfg.SocialGraphURL,
			Timeout:  10 * time.Second,
			Cache:    rdb,
			CacheTTL: cfg.FollowerCacheTTL,
			Fallback: fallback,
		}, log)
	}

	c := cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))

	jobs := []struct {
		name string
		cron string
		run  func(context.Context)
	}{
		{"follower-refresh", cfg.WorkerFollowerRefreshCron, w.refreshFollowers},
		{"metadata-warm", cfg.WorkerMetadataWarmCron, w.warmMetadata},
		{"claim-notice", cfg.WorkerClaimNoticeCron, w.notifyClaimable},
		{"nonce-cleanup", "@hourly", w.cleanupNonces},
	}
	for _, job := range jobs {
		job := job
		if _, err := c.AddFunc(job.cron, func() {
			jctx, jcancel := context.WithTimeout(ctx, jobTimeout)
			defer jcancel()
			start := time.Now()
			job.run(jctx)
			log.Debug("job finished", zap.String("job", job.name), zap.Duration("took", time.Since(start)))
		}); err != nil {
			log.Fatal("failed to schedule job", zap.String("job", job.name), zap.String("cron", job.cron), zap.Error(err))
		}
		log.Info("job scheduled", zap.String("job", job.name), zap.String("cron", job.cron))
	}

	c.Start()
	log.Info("worker started")

	// Health and metrics
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	go func() {
		if err := app.Listen(fmt.Sprintf(":%s", cfg.WorkerPort)); err != nil {
			log.Error("health server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	<-c.Stop().Done()
	_ = app.Shutdown()
	cancel()
}

func (w *worker) reload(ctx context.Context) error {
	snapshot, err := w.marketRepo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load marketplace state: %w", err)
	}
	return w.mp.Restore(snapshot)
}

func (w *worker) refreshFollowers(ctx context.Context) {
	if w.graph == nil {
		return
	}
	addrs, err := w.userRepo.GetActiveAddresses(ctx, time.Now().Add(-activeUserWindow))
	if err != nil {
		w.log.Error("failed to get active addresses", zap.Error(err))
		return
	}

	refreshed := 0
	for _, a := range addrs {
		if ctx.Err() != nil {
			break
		}
		if _, err := w.graph.Refresh(ctx, common.HexToAddress(a)); err != nil {
			w.log.Warn("follower refresh failed", zap.String("address", a), zap.Error(err))
			continue
		}
		refreshed++
	}
	w.log.Info("followers refreshed", zap.Int("refreshed", refreshed), zap.Int("total", len(addrs)))
}

func (w *worker) warmMetadata(ctx context.Context) {
	if err := w.reload(ctx); err != nil {
		w.log.Error("metadata warm-up skipped", zap.Error(err))
		return
	}
	metrics.Campaigns.Set(float64(w.mp.CampaignCount()))
	campaigns := w.mp.ActiveCampaigns()
	placeholders := 0
	for _, c := range campaigns {
		if ctx.Err() != nil {
			break
		}
		if m := w.resolver.Campaign(ctx, c); m.Placeholder {
			placeholders++
		}
	}
	w.log.Info("metadata warmed", zap.Int("campaigns", len(campaigns)), zap.Int("placeholders", placeholders))
}

// notifyClaimable tells participants when a campaign's claim window opens.
func (w *worker) notifyClaimable(ctx context.Context) {
	if err := w.reload(ctx); err != nil {
		w.log.Error("claim notices skipped", zap.Error(err))
		return
	}

	now := time.Now().Unix()
	from := now - 60
	if v, err := w.rdb.Get(ctx, redisClaimCursor).Result(); err == nil {
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			from = n
		}
	}

	sent := 0
	for _, c := range w.mp.ClaimWindowOpenedBetween(from, now) {
		ok, err := w.rdb.SetNX(ctx, redisClaimNotified+strconv.FormatUint(c.ID, 10), "1", claimNotifiedTTL).Result()
		if err != nil {
			w.log.Warn("claim notice dedup check failed", zap.Uint64("campaign_id", c.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		for _, p := range w.mp.UnclaimedParticipations(c.ID) {
			if err := w.publisher.Publish(ctx, events.StreamNotifications, events.Event{
				Type: events.EventRewardClaimable,
				Payload: map[string]any{
					"recipient":   p.Influencer.Hex(),
					"campaign_id": c.ID,
					"post_id":     c.PostID,
					"reward":      chain.FormatUnits(p.Reward, w.cfg.TokenDecimals),
					"symbol":      w.cfg.TokenSymbol,
				},
			}); err != nil {
				w.log.Warn("failed to publish claim notice", zap.Uint64("campaign_id", c.ID), zap.Error(err))
				continue
			}
			sent++
		}
	}

	if err := w.rdb.Set(ctx, redisClaimCursor, strconv.FormatInt(now, 10), 0).Err(); err != nil {
		w.log.Warn("failed to save claim notice cursor", zap.Error(err))
	}
	if sent > 0 {
		w.log.Info("claim notices sent", zap.Int("count", sent))
	}
}

func (w *worker) cleanupNonces(ctx context.Context) {
	n, err := w.nonceRepo.DeleteExpired(ctx)
	if err != nil {
		w.log.Error("failed to delete expired nonces", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("expired nonces deleted", zap.Int64("count", n))
	}
}

// cronLogger adapts zap for cron
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
