package social

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ProfileScraper reads follower counts off a public HTML profile page.
// It is the fallback when the graph API is unavailable.
type ProfileScraper struct {
	httpClient *http.Client
	urlPattern string // %s is replaced with the hex address
	maxRetries int
	log        *zap.Logger
}

func NewProfileScraper(urlPattern string, timeout time.Duration, maxRetries int, log *zap.Logger) *ProfileScraper {
	return &ProfileScraper{
		httpClient: &http.Client{Timeout: timeout},
		urlPattern: urlPattern,
		maxRetries: maxRetries,
		log:        log,
	}
}

func (p *ProfileScraper) FollowerCount(ctx context.Context, account common.Address) (uint64, error) {
	url := fmt.Sprintf(p.urlPattern, account.Hex())

	var doc *goquery.Document
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; adcampaign-backend/1.0)")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			lastErr = err
			sleepCtx(ctx, time.Duration(attempt+1)*500*time.Millisecond)
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return 0, nil
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			sleepCtx(ctx, time.Duration(attempt+1)*500*time.Millisecond)
			continue
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}

	if lastErr != nil {
		return 0, lastErr
	}
	return followersFromDoc(doc), nil
}

// followersFromDoc looks for a dedicated counter first, then any stat whose
// label mentions followers.
func followersFromDoc(doc *goquery.Document) uint64 {
	var n int
	doc.Find("[data-testid=followers], .profile-stats .followers .count").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n = parseCount(s.Text())
		return n == 0
	})
	if n > 0 {
		return uint64(n)
	}

	doc.Find(".profile-stats .stat, .stat").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		label := strings.ToLower(strings.TrimSpace(s.Find(".label").Text()))
		if !strings.Contains(label, "follower") {
			return true
		}
		n = parseCount(s.Find(".value").Text())
		return n == 0
	})
	return uint64(n)
}

var countRE = regexp.MustCompile(`[\d,.]+[KkMm]?`)

func parseCount(text string) int {
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, ",", "")

	match := countRE.FindString(text)
	if match == "" {
		return 0
	}

	multiplier := 1
	if strings.HasSuffix(match, "K") || strings.HasSuffix(match, "k") {
		multiplier = 1000
		match = match[:len(match)-1]
	} else if strings.HasSuffix(match, "M") || strings.HasSuffix(match, "m") {
		multiplier = 1000000
		match = match[:len(match)-1]
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return int(f * float64(multiplier))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
