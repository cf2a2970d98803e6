package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/metrics"
	"github.com/allegro/bigcache/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	redisPrefix  = "metadata:"
	maxBodyBytes = 1 << 20
)

type Options struct {
	GatewayURL string
	Timeout    time.Duration
	MaxRetries int
	RPS        int
	CacheTTL   time.Duration
	Redis      *redis.Client // optional L2
}

// Resolver turns content URIs into Metadata. Lookups go through the
// in-process cache, then redis, then the gateway.
type Resolver struct {
	gateway    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	l1         *bigcache.BigCache
	rdb        *redis.Client
	ttl        time.Duration
	log        *zap.Logger
}

func NewResolver(ctx context.Context, opts Options, log *zap.Logger) (*Resolver, error) {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = 5
	}

	cacheCfg := bigcache.DefaultConfig(ttl)
	cacheCfg.HardMaxCacheSize = 64 // MB
	cacheCfg.Verbose = false
	l1, err := bigcache.New(ctx, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("init metadata cache: %w", err)
	}

	return &Resolver{
		gateway:    strings.TrimRight(opts.GatewayURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		maxRetries: opts.MaxRetries,
		l1:         l1,
		rdb:        opts.Redis,
		ttl:        ttl,
		log:        log,
	}, nil
}

func (r *Resolver) Close() error {
	return r.l1.Close()
}

func (r *Resolver) Campaign(ctx context.Context, c *marketplace.Campaign) *Metadata {
	return r.Resolve(ctx, EntityCampaign, c.ID, c.ContentURI, c.ContentHash)
}

func (r *Resolver) Group(ctx context.Context, g *marketplace.CampaignGroup) *Metadata {
	return r.Resolve(ctx, EntityGroup, g.ID, g.GroupURI, common.Hash{})
}

// Resolve never fails: on any error it logs the FetchError and returns
// placeholder metadata. Placeholders are not cached.
func (r *Resolver) Resolve(ctx context.Context, entityType string, id uint64, uri string, hash common.Hash) *Metadata {
	key := cacheKey(entityType, id, uri)

	if m := r.fromL1(key); m != nil {
		metrics.MetadataFetches.WithLabelValues("l1", "hit").Inc()
		return m
	}
	if m := r.fromL2(ctx, key); m != nil {
		metrics.MetadataFetches.WithLabelValues("l2", "hit").Inc()
		r.toL1(key, m)
		return m
	}

	m, err := r.fetch(ctx, uri, hash)
	if err != nil {
		metrics.MetadataFetches.WithLabelValues("gateway", "error").Inc()
		r.log.Warn("metadata fetch failed, using placeholder",
			zap.String("entity", entityType),
			zap.Uint64("id", id),
			zap.Error(err),
		)
		return placeholder(entityType, id)
	}
	metrics.MetadataFetches.WithLabelValues("gateway", "ok").Inc()

	r.toL1(key, m)
	r.toL2(ctx, key, m)
	return m
}

// Invalidate drops cached metadata, used when a campaign's content changes.
func (r *Resolver) Invalidate(ctx context.Context, entityType string, id uint64, uri string) {
	key := cacheKey(entityType, id, uri)
	if err := r.l1.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		r.log.Debug("l1 delete failed", zap.String("key", key), zap.Error(err))
	}
	if r.rdb != nil {
		r.rdb.Del(ctx, redisPrefix+key)
	}
}

func (r *Resolver) fetch(ctx context.Context, uri string, hash common.Hash) (*Metadata, error) {
	url, err := r.GatewayURL(uri)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	var body []byte
	var lastErr *FetchError
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff(attempt)); err != nil {
				return nil, &FetchError{URI: uri, Err: err}
			}
		}
		body, lastErr = r.get(ctx, uri, url)
		if lastErr == nil || !lastErr.Temporary() {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	m := &Metadata{}
	if hash != (common.Hash{}) {
		if got := marketplace.ContentHash(body); got != hash {
			return nil, &FetchError{URI: uri, Err: fmt.Errorf("%w: got %s want %s", ErrHashMismatch, got.Hex(), hash.Hex())}
		}
		m.Verified = true
	}
	if err := json.Unmarshal(body, m); err != nil {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("decode metadata: %w", err)}
	}
	m.Placeholder = false
	return m, nil
}

func (r *Resolver) get(ctx context.Context, uri, url string) ([]byte, *FetchError) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URI: uri, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URI: uri, Err: err}
	}
	return body, nil
}

// GatewayURL maps lens:// and ipfs:// URIs onto the gateway. http(s) URIs
// are fetched as-is.
func (r *Resolver) GatewayURL(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "lens://"):
		return r.gateway + "/" + strings.TrimPrefix(uri, "lens://"), nil
	case strings.HasPrefix(uri, "ipfs://"):
		return r.gateway + "/ipfs/" + strings.TrimPrefix(uri, "ipfs://"), nil
	case strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "http://"):
		return uri, nil
	default:
		return "", fmt.Errorf("unsupported uri scheme: %q", uri)
	}
}

func (r *Resolver) fromL1(key string) *Metadata {
	data, err := r.l1.Get(key)
	if err != nil {
		return nil
	}
	m := &Metadata{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil
	}
	return m
}

func (r *Resolver) toL1(key string, m *Metadata) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := r.l1.Set(key, data); err != nil {
		r.log.Debug("l1 set failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Resolver) fromL2(ctx context.Context, key string) *Metadata {
	if r.rdb == nil {
		return nil
	}
	data, err := r.rdb.Get(ctx, redisPrefix+key).Bytes()
	if err != nil {
		return nil
	}
	m := &Metadata{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil
	}
	return m
}

func (r *Resolver) toL2(ctx context.Context, key string, m *Metadata) {
	if r.rdb == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, redisPrefix+key, data, r.ttl).Err(); err != nil {
		r.log.Warn("metadata redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// The URI is part of the key so a content update never serves stale metadata.
func cacheKey(entityType string, id uint64, uri string) string {
	return fmt.Sprintf("%s:%d:%s", entityType, id, uri)
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * 250 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
