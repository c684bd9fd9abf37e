// Package lim throttles API traffic per client and endpoint class.
package lim

import (
	"context"
	"crosssync/svc/util"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	maxLimiters    = 10000
	window         = time.Minute
	counterTimeout = 100 * time.Millisecond
	adaptiveFor    = 60 * time.Second
)

// Endpoint classes. Writes persist records or call out to the QR service.
const (
	EndpointRead  = "read"
	EndpointWrite = "write"
	EndpointQR    = "qr"
)

// Counter is a shared fixed-window counter, satisfied by db.Redis.
type Counter interface {
	RateLimit(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

type Limiter struct {
	counter           Counter
	trustedProxies    []string
	detector          *AnomalyDetector
	adaptiveModeUntil int64
	local             *lru.Cache[string, *rate.Limiter]
	readRPM           int
	burst             int
	conservativeLimit int
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// New panics on malformed proxy entries; cfg.Validate rejects them first.
func New(readRPM, burst, conservativeLimit int, counter Counter, trustedProxies []string) *Limiter {
	for _, proxy := range trustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				panic(fmt.Sprintf("invalid CIDR in trustedProxies: %s: %v", proxy, err))
			}
		} else if net.ParseIP(proxy) == nil {
			panic(fmt.Sprintf("invalid IP in trustedProxies: %s", proxy))
		}
	}
	local, _ := lru.New[string, *rate.Limiter](maxLimiters)
	l := &Limiter{
		counter:           counter,
		trustedProxies:    trustedProxies,
		local:             local,
		readRPM:           readRPM,
		burst:             burst,
		conservativeLimit: conservativeLimit,
	}
	l.detector = NewAnomalyDetector(5, 5.0, l.TriggerAdaptiveMode)
	l.detector.Start(time.Minute)
	return l
}

func (l *Limiter) Stop() {
	l.detector.Stop()
}

// TriggerAdaptiveMode halves every limit for the next minute.
func (l *Limiter) TriggerAdaptiveMode() {
	atomic.StoreInt64(&l.adaptiveModeUntil, time.Now().Add(adaptiveFor).Unix())
}

func (l *Limiter) isAdaptiveMode() bool {
	return time.Now().Unix() < atomic.LoadInt64(&l.adaptiveModeUntil)
}

func (l *Limiter) RecordRequest() { l.detector.RecordRequest() }
func (l *Limiter) RecordError()   { l.detector.RecordError() }

func (l *Limiter) limitFor(endpoint string) int {
	limit := l.readRPM
	if endpoint != EndpointRead {
		limit = l.conservativeLimit
	}
	if l.isAdaptiveMode() {
		limit /= 2
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Check counts one request from r against endpoint. The shared counter is
// authoritative; without it, or when it fails, a per-process token bucket decides.
func (l *Limiter) Check(r *http.Request, endpoint string) *Result {
	ip := GetRealIP(r, l.trustedProxies)
	limit := l.limitFor(endpoint)
	if l.counter != nil {
		ctx, cancel := context.WithTimeout(r.Context(), counterTimeout)
		defer cancel()
		usage, err := l.counter.RateLimit(ctx, endpoint+":"+ip, limit, window)
		if err == nil {
			remaining := limit - usage
			if remaining < 0 {
				remaining = 0
			}
			return &Result{Allowed: usage <= limit, Limit: limit, Remaining: remaining, Reset: time.Now().Add(window)}
		}
		util.Warn().Err(err).Msg("shared rate limit unavailable, using local fallback")
		if conservative := l.limitFor(EndpointWrite); conservative < limit {
			limit = conservative
		}
	}
	return l.checkLocal(ip, endpoint, limit)
}

func (l *Limiter) checkLocal(ip, endpoint string, limit int) *Result {
	key := ip + ":" + endpoint + ":" + strconv.Itoa(limit)
	lim, ok := l.local.Get(key)
	if !ok {
		burst := l.burst
		if burst <= 0 || burst > limit {
			burst = limit
		}
		lim = rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), burst)
		l.local.Add(key, lim)
	}
	now := time.Now()
	if !lim.AllowN(now, 1) {
		return &Result{Allowed: false, Limit: limit, Remaining: 0, Reset: now.Add(window)}
	}
	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{Allowed: true, Limit: limit, Remaining: remaining, Reset: now.Add(window)}
}

// GetRealIP walks X-Forwarded-For from the right, skipping trusted proxies.
// The header is only honoured when the direct peer is itself trusted.
func GetRealIP(r *http.Request, trustedProxies []string) string {
	remoteIP := stripPort(r.RemoteAddr)
	if len(trustedProxies) == 0 || !isTrustedProxy(remoteIP, trustedProxies) {
		return remoteIP
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remoteIP
	}
	const maxHops = 100
	hops := strings.Split(xff, ",")
	if len(hops) > maxHops {
		util.Warn().Int("hops", len(hops)).Str("remote", util.RedactIP(remoteIP)).Msg("XFF header excessive, truncated parsing")
		hops = hops[len(hops)-maxHops:]
	}
	for i := len(hops) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(hops[i])
		if ip == "" {
			continue
		}
		if net.ParseIP(ip) == nil {
			util.Warn().Str("ip", util.RedactIP(ip)).Msg("invalid IP in X-Forwarded-For, skipping")
			continue
		}
		if !isTrustedProxy(ip, trustedProxies) {
			return ip
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trustedProxies []string) bool {
	parsed := net.ParseIP(ip)
	for _, proxy := range trustedProxies {
		if ip == proxy {
			return true
		}
		if !strings.Contains(proxy, "/") || parsed == nil {
			continue
		}
		if _, subnet, err := net.ParseCIDR(proxy); err == nil && subnet.Contains(parsed) {
			return true
		}
	}
	return false
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
