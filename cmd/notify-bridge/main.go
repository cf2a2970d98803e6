package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/config"
	"github.com/ads-marketplace/campaign-backend/internal/db"
	"github.com/ads-marketplace/campaign-backend/internal/events"
	"github.com/ads-marketplace/campaign-backend/internal/logger"
	"go.uber.org/zap"
)

// Notify bridge subscribes to user-facing notifications on redis and
// forwards each addressed one to NOTIFY_WEBHOOK_URL.

type notification struct {
	Recipient string         `json:"recipient"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	SentAt    time.Time      `json:"sent_at"`
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	defer log.Sync()

	if cfg.NotifyWebhookURL == "" {
		log.Fatal("NOTIFY_WEBHOOK_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	client := &http.Client{Timeout: 10 * time.Second}

	log.Info("notify-bridge started")

	if err := subscriber.Subscribe(ctx, events.StreamNotifications, func(event events.Event) {
		to := events.Recipient(event)
		if to == "" {
			return
		}
		log.Debug("forwarding notification", zap.String("type", event.Type), zap.String("recipient", to))
		forward(ctx, client, cfg.NotifyWebhookURL, notification{
			Recipient: to,
			Type:      event.Type,
			Payload:   event.Payload,
			SentAt:    time.Now().UTC(),
		}, log)
	}); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}

func forward(ctx context.Context, client *http.Client, url string, n notification, log *zap.Logger) {
	body, err := json.Marshal(n)
	if err != nil {
		log.Warn("failed to encode notification", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warn("failed to build notification request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		log.Warn("failed to forward notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("notification webhook returned non-2xx", zap.Int("status", resp.StatusCode))
	}
}
