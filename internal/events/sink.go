package events

import (
	"context"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"go.uber.org/zap"
)

// MarketplaceSink forwards committed marketplace events to the pub/sub stream.
// Publishing happens after commit, so a failure is logged and never undoes state.
type MarketplaceSink struct {
	pub Publisher
	log *zap.Logger
}

func NewMarketplaceSink(pub Publisher, log *zap.Logger) *MarketplaceSink {
	return &MarketplaceSink{pub: pub, log: log}
}

func (s *MarketplaceSink) Emit(ctx context.Context, e marketplace.Event) {
	if err := s.pub.Publish(ctx, StreamMarketplace, FromMarketplace(e)); err != nil {
		s.log.Error("failed to publish marketplace event",
			zap.String("name", e.Name),
			zap.Uint64("campaign_id", e.CampaignID),
			zap.Error(err),
		)
	}
}

func FromMarketplace(e marketplace.Event) Event {
	return Event{
		Type: EventMarketplace,
		Payload: map[string]any{
			"name":        e.Name,
			"campaign_id": e.CampaignID,
			"group_id":    e.GroupID,
			"args":        e.Args,
			"timestamp":   e.Timestamp,
		},
	}
}
