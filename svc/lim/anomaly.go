package lim

import (
	"crosssync/metrics"
	"crosssync/svc/util"
	"sync"
	"time"
)

const minSample = 10

// AnomalyDetector keeps a ring of per-interval request and 5xx counts and
// fires onAnomaly when the rolling error rate crosses threshold percent.
type AnomalyDetector struct {
	mu        sync.Mutex
	buckets   []bucket
	cur       int
	threshold float64
	onAnomaly func()
	done      chan struct{}
	stopOnce  sync.Once
}

type bucket struct {
	requests int64
	errors   int64
}

func NewAnomalyDetector(n int, threshold float64, onAnomaly func()) *AnomalyDetector {
	if n <= 0 {
		n = 5
	}
	return &AnomalyDetector{
		buckets:   make([]bucket, n),
		threshold: threshold,
		onAnomaly: onAnomaly,
		done:      make(chan struct{}),
	}
}

func (d *AnomalyDetector) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Advance()
			case <-d.done:
				return
			}
		}
	}()
}

func (d *AnomalyDetector) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}

func (d *AnomalyDetector) RecordRequest() {
	d.mu.Lock()
	d.buckets[d.cur].requests++
	d.mu.Unlock()
}

func (d *AnomalyDetector) RecordError() {
	d.mu.Lock()
	d.buckets[d.cur].errors++
	d.mu.Unlock()
}

// Advance publishes the rolling error rate and rotates to a fresh bucket.
// It returns the rate it published.
func (d *AnomalyDetector) Advance() float64 {
	d.mu.Lock()
	var reqs, errs int64
	for _, b := range d.buckets {
		reqs += b.requests
		errs += b.errors
	}
	var errRate float64
	if reqs > 0 {
		errRate = float64(errs) / float64(reqs) * 100
	}
	d.cur = (d.cur + 1) % len(d.buckets)
	d.buckets[d.cur] = bucket{}
	d.mu.Unlock()

	metrics.RecentErrorRatePercent.Set(errRate)
	if reqs > minSample && errRate > d.threshold {
		util.Warn().
			Float64("error_rate", errRate).
			Int64("total_reqs", reqs).
			Int64("total_errs", errs).
			Msg("high error rate, tightening rate limits")
		if d.onAnomaly != nil {
			d.onAnomaly()
		}
	}
	return errRate
}
