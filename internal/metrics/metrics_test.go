package metrics

import (
	"context"
	"testing"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type captureSink struct{ got []marketplace.Event }

func (c *captureSink) Emit(_ context.Context, e marketplace.Event) {
	c.got = append(c.got, e)
}

func TestSinkCountsAndForwards(t *testing.T) {
	next := &captureSink{}
	s := NewSink(next)

	before := testutil.ToFloat64(Events.WithLabelValues(marketplace.EventRewardPaid))
	s.Emit(context.Background(), marketplace.Event{Name: marketplace.EventRewardPaid, CampaignID: 1})
	s.Emit(context.Background(), marketplace.Event{Name: marketplace.EventRewardPaid, CampaignID: 2})

	assert.Equal(t, before+2, testutil.ToFloat64(Events.WithLabelValues(marketplace.EventRewardPaid)))
	assert.Len(t, next.got, 2)

	NewSink(nil).Emit(context.Background(), marketplace.Event{Name: marketplace.EventRewardPaid})
}
