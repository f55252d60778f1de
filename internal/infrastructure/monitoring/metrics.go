package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the exchange core's Prometheus metrics.
type Metrics struct {
	RoundsStarted  *prometheus.CounterVec
	RoundsDeferred *prometheus.CounterVec
	CacheRebuilds  *prometheus.CounterVec
	Boundaries     *prometheus.CounterVec
	NullSends      prometheus.Counter
	RoundDuration  *prometheus.HistogramVec
	ChannelsActive prometheus.Gauge
}

// NewMetrics creates a metrics collector registered on reg; pass nil to use
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RoundsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "halo_rounds_started_total",
			Help: "Exchange rounds started, by subset tag",
		}, []string{"tag"}),
		RoundsDeferred: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "halo_rounds_deferred_total",
			Help: "Rounds deferred by backpressure, by subset tag",
		}, []string{"tag"}),
		CacheRebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "halo_cache_rebuilds_total",
			Help: "Buffer cache rebuilds, by subset tag and direction",
		}, []string{"tag", "dir"}),
		Boundaries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "halo_boundaries_total",
			Help: "Boundaries packed and unpacked, by operation",
		}, []string{"op"}),
		NullSends: factory.NewCounter(prometheus.CounterOpts{
			Name: "halo_null_sends_total",
			Help: "Sends posted with the null marker for unallocated variables",
		}),
		RoundDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "halo_round_duration_seconds",
			Help:    "Wall time of exchange round phases",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"phase"}),
		ChannelsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "halo_channels_active",
			Help: "Persistent channels in the current topology epoch",
		}),
	}
}
