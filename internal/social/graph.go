package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const followerCachePrefix = "followers:"

type followersResponse struct {
	Address   string `json:"address"`
	Followers uint64 `json:"followers"`
}

// GraphClient implements marketplace.FollowerGraph against the social graph
// API. Counts are cached in redis; on API failure the profile scraper is tried.
type GraphClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	rdb        *redis.Client
	ttl        time.Duration
	fallback   *ProfileScraper
	log        *zap.Logger
}

type GraphOptions struct {
	BaseURL  string
	Timeout  time.Duration
	RPS      int
	Cache    *redis.Client // optional
	CacheTTL time.Duration
	Fallback *ProfileScraper // optional
}

func NewGraphClient(opts GraphOptions, log *zap.Logger) *GraphClient {
	rps := opts.RPS
	if rps <= 0 {
		rps = 5
	}
	return &GraphClient{
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		rdb:        opts.Cache,
		ttl:        opts.CacheTTL,
		fallback:   opts.Fallback,
		log:        log,
	}
}

func (g *GraphClient) FollowerCount(ctx context.Context, account common.Address) (uint64, error) {
	if n, ok := g.cached(ctx, account); ok {
		metrics.FollowerLookups.WithLabelValues("cache", "ok").Inc()
		return n, nil
	}
	return g.Refresh(ctx, account)
}

// Refresh bypasses the cache and stores the fresh count.
func (g *GraphClient) Refresh(ctx context.Context, account common.Address) (uint64, error) {
	n, err := g.fetch(ctx, account)
	if err == nil {
		metrics.FollowerLookups.WithLabelValues("graph", "ok").Inc()
		g.store(ctx, account, n)
		return n, nil
	}
	metrics.FollowerLookups.WithLabelValues("graph", "error").Inc()

	if g.fallback == nil {
		return 0, err
	}
	g.log.Warn("graph lookup failed, scraping profile",
		zap.String("address", account.Hex()),
		zap.Error(err),
	)
	n, ferr := g.fallback.FollowerCount(ctx, account)
	if ferr != nil {
		metrics.FollowerLookups.WithLabelValues("profile", "error").Inc()
		return 0, fmt.Errorf("graph: %v; profile: %w", err, ferr)
	}
	metrics.FollowerLookups.WithLabelValues("profile", "ok").Inc()
	g.store(ctx, account, n)
	return n, nil
}

func (g *GraphClient) fetch(ctx context.Context, account common.Address) (uint64, error) {
	if g.baseURL == "" {
		return 0, fmt.Errorf("social graph url not configured")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/followers/%s", g.baseURL, account.Hex()), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("graph HTTP %d", resp.StatusCode)
	}

	var body followersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode graph response: %w", err)
	}
	return body.Followers, nil
}

func (g *GraphClient) cached(ctx context.Context, account common.Address) (uint64, bool) {
	if g.rdb == nil {
		return 0, false
	}
	val, err := g.rdb.Get(ctx, followerCachePrefix+account.Hex()).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (g *GraphClient) store(ctx context.Context, account common.Address, n uint64) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Set(ctx, followerCachePrefix+account.Hex(), strconv.FormatUint(n, 10), g.ttl).Err(); err != nil {
		g.log.Warn("failed to cache follower count", zap.String("address", account.Hex()), zap.Error(err))
	}
}
