package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SharesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssync_shares_created_total",
		Help: "no. of share links generated",
	})
	SharesEdited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssync_shares_edited_total",
		Help: "no. of edit-saves on shared content",
	})
	ContentLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosssync_content_loads_total",
			Help: "no. of shared content retrievals by source",
		},
		[]string{"source"},
	)
	StoreWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosssync_store_write_failures_total",
			Help: "no. of failed best-effort store writes",
		},
		[]string{"store"},
	)
	QRFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosssync_qr_fetches_total",
			Help: "no. of QR image fetches by result",
		},
		[]string{"result"},
	)
	Exports = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crosssync_exports_total",
		Help: "no. of text exports rendered",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crosssync_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosssync_rate_limit_hits_total",
			Help: "no. of rate limit violations",
		},
		[]string{"endpoint"},
	)
	RecentErrorRatePercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crosssync_recent_error_rate_percent",
		Help: "5min rolling avg error rate percentage",
	})
)
