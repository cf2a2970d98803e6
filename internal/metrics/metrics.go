package metrics

import (
	"context"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adcampaign"

var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Marketplace operations by name and outcome",
	}, []string{"op", "outcome"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Time from submission to commit of a marketplace operation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Marketplace events emitted by name",
	}, []string{"event"})

	MetadataFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "metadata_fetches_total",
		Help:      "Content metadata lookups by source and outcome",
	}, []string{"source", "outcome"})

	FollowerLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "follower_lookups_total",
		Help:      "Follower count lookups by source and outcome",
	}, []string{"source", "outcome"})

	DepositsCredited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deposits_credited_total",
		Help:      "ERC-20 deposits credited to ledger balances",
	})

	IndexerBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "indexer_block",
		Help:      "Last block scanned by the deposit indexer",
	})

	Campaigns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "campaigns",
		Help:      "Campaigns created since the marketplace was deployed",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
)

// Sink counts events before handing them on.
type Sink struct {
	next marketplace.EventSink
}

func NewSink(next marketplace.EventSink) *Sink {
	return &Sink{next: next}
}

func (s *Sink) Emit(ctx context.Context, e marketplace.Event) {
	Events.WithLabelValues(e.Name).Inc()
	if s.next != nil {
		s.next.Emit(ctx, e)
	}
}
