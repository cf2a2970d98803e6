package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const doc = `{"title":"Spring drop","description":"Quote this post","image":"ipfs://img","actionType":"QUOTE","quoteText":"gm","categories":["nft","art"],"owner":"0x1111111111111111111111111111111111111111"}`

func newTestResolver(t *testing.T, gateway string, retries int) *Resolver {
	t.Helper()
	r, err := NewResolver(context.Background(), Options{
		GatewayURL: gateway,
		Timeout:    time.Second,
		MaxRetries: retries,
		RPS:        100,
		CacheTTL:   time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestGatewayURL(t *testing.T) {
	r := newTestResolver(t, "https://gw.example/", 0)

	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"lens://abc123", "https://gw.example/abc123", false},
		{"ipfs://bafy", "https://gw.example/ipfs/bafy", false},
		{"https://cdn.example/x.json", "https://cdn.example/x.json", false},
		{"ar://tx", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := r.GatewayURL(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveVerifiesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/campaign-1", r.URL.Path)
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, 0)
	hash := marketplace.ContentHash([]byte(doc))

	m := r.Resolve(context.Background(), EntityCampaign, 1, "lens://campaign-1", hash)
	assert.False(t, m.Placeholder)
	assert.True(t, m.Verified)
	assert.Equal(t, "Spring drop", m.DisplayTitle())
	assert.Equal(t, []string{"nft", "art"}, m.Categories)
	assert.Equal(t, "gm", m.QuoteText)

	again := r.Resolve(context.Background(), EntityCampaign, 1, "lens://campaign-1", hash)
	assert.Equal(t, m.Title, again.Title)
	assert.Equal(t, int32(1), hits.Load())

	r.Invalidate(context.Background(), EntityCampaign, 1, "lens://campaign-1")
	r.Resolve(context.Background(), EntityCampaign, 1, "lens://campaign-1", hash)
	assert.Equal(t, int32(2), hits.Load())
}

func TestResolveHashMismatchIsPlaceholder(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, 3)
	m := r.Resolve(context.Background(), EntityCampaign, 7, "lens://campaign-7", common.HexToHash("0x01"))
	assert.True(t, m.Placeholder)
	assert.Equal(t, "campaign #7", m.Title)
	// mismatches are not retried
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolveRetriesTransientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, 3)
	m := r.Resolve(context.Background(), EntityGroup, 2, "ipfs://group", common.Hash{})
	assert.False(t, m.Placeholder)
	assert.False(t, m.Verified)
	assert.Equal(t, int32(3), hits.Load())
}

func TestResolveDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := newTestResolver(t, srv.URL, 3)
	m := r.Resolve(context.Background(), EntityCampaign, 3, "lens://gone", common.Hash{})
	assert.True(t, m.Placeholder)
	assert.Equal(t, int32(1), hits.Load())

	// placeholders are not cached
	r.Resolve(context.Background(), EntityCampaign, 3, "lens://gone", common.Hash{})
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchError(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name      string
		err       *FetchError
		temporary bool
	}{
		{"network", &FetchError{URI: "lens://x", Err: base}, true},
		{"rate limited", &FetchError{URI: "lens://x", Status: 429, Err: base}, true},
		{"server", &FetchError{URI: "lens://x", Status: 502, Err: base}, true},
		{"not found", &FetchError{URI: "lens://x", Status: 404, Err: base}, false},
		{"mismatch", &FetchError{URI: "lens://x", Err: ErrHashMismatch}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.temporary, tt.err.Temporary())
			assert.Contains(t, tt.err.Error(), "lens://x")
		})
	}
	assert.ErrorIs(t, &FetchError{Err: ErrHashMismatch}, ErrHashMismatch)
}
