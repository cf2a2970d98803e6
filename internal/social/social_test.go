package social

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var influencer = common.HexToAddress("0x3333333333333333333333333333333333333333")

func TestParseCount(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1.2K", 1200},
		{"1.5M", 1500000},
		{"123", 123},
		{"12,345", 12345},
		{"1 234", 1234},
		{"5.6K followers", 5600},
		{"0", 0},
		{"", 0},
		{"no number", 0},
		{"42k", 42000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseCount(tt.input))
		})
	}
}

func TestFollowersFromDoc(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected uint64
	}{
		{"testid", `<div><span data-testid="followers">2.5K</span></div>`, 2500},
		{"stat label", `<div class="profile-stats"><div class="stat"><span class="label">Posts</span><span class="value">90</span></div><div class="stat"><span class="label">Followers</span><span class="value">1,024</span></div></div>`, 1024},
		{"none", `<div><p>nothing here</p></div>`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, followersFromDoc(doc))
		})
	}
}

func TestGraphClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/followers/"+influencer.Hex(), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"address":%q,"followers":150}`, influencer.Hex())
	}))
	defer srv.Close()

	g := NewGraphClient(GraphOptions{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	n, err := g.FollowerCount(context.Background(), influencer)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), n)
}

func TestGraphClientFallsBackToProfile(t *testing.T) {
	var graphHits atomic.Int32
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		graphHits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer graph.Close()

	profile := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><span data-testid="followers">3K</span></body></html>`)
	}))
	defer profile.Close()

	g := NewGraphClient(GraphOptions{
		BaseURL:  graph.URL,
		Timeout:  time.Second,
		Fallback: NewProfileScraper(profile.URL+"/u/%s", time.Second, 0, zap.NewNop()),
	}, zap.NewNop())

	n, err := g.FollowerCount(context.Background(), influencer)
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), n)
	assert.Equal(t, int32(1), graphHits.Load())
}

func TestGraphClientErrorWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGraphClient(GraphOptions{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	_, err := g.FollowerCount(context.Background(), influencer)
	require.Error(t, err)
}

func TestProfileScraperNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewProfileScraper(srv.URL+"/%s", time.Second, 2, zap.NewNop())
	n, err := p.FollowerCount(context.Background(), influencer)
	require.NoError(t, err)
	assert.Zero(t, n)
}
