// Package qr delegates QR image generation to an external HTTP endpoint.
package qr

import (
	"context"
	"crosssync/metrics"
	"crosssync/pkg/domain"
	"crosssync/svc/share"
	"crosssync/svc/util"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultEndpoint = "https://api.qrserver.com/v1/create-qr-code/"
	maxImageBytes   = 1 << 20
	cacheTTL        = time.Hour
)

type Config struct {
	Endpoint  string
	Size      int
	Timeout   time.Duration
	CacheSize int
	Workers   int
}

// Renderer builds image URLs for the external endpoint and optionally fetches them.
type Renderer struct {
	endpoint string
	size     int
	client   *retryablehttp.Client
	cache    *expirable.LRU[string, []byte]
	group    singleflight.Group
	queue    chan string
	wg       sync.WaitGroup
	closed   atomic.Bool
	mu       sync.RWMutex
}

func New(c Config) *Renderer {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Size <= 0 {
		c.Size = 300
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 256
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = c.Timeout
	client.Logger = nil
	r := &Renderer{
		endpoint: c.Endpoint,
		size:     c.Size,
		client:   client,
		cache:    expirable.NewLRU[string, []byte](c.CacheSize, nil, cacheTTL),
	}
	if c.Workers > 0 {
		r.queue = make(chan string, c.Workers*16)
		for i := 0; i < c.Workers; i++ {
			r.wg.Add(1)
			go r.worker()
		}
	}
	return r
}

// Client exposes the retrying HTTP client for tuning.
func (r *Renderer) Client() *retryablehttp.Client { return r.client }

// ImageURL is the GET target that renders shareURL as a PNG.
func (r *Renderer) ImageURL(shareURL string) string {
	sz := strconv.Itoa(r.size)
	return fmt.Sprintf("%s?size=%sx%s&data=%s&format=png&ecc=M", r.endpoint, sz, sz, share.EscapeComponent(shareURL))
}

// Fetch downloads the PNG for shareURL. Concurrent calls for one URL share a request.
func (r *Renderer) Fetch(ctx context.Context, shareURL string) ([]byte, error) {
	imgURL := r.ImageURL(shareURL)
	if img, ok := r.cache.Get(imgURL); ok {
		metrics.QRFetches.WithLabelValues("cache").Inc()
		return img, nil
	}
	v, err, _ := r.group.Do(imgURL, func() (interface{}, error) {
		if img, ok := r.cache.Get(imgURL); ok {
			return img, nil
		}
		img, err := r.download(ctx, imgURL)
		if err != nil {
			return nil, err
		}
		r.cache.Add(imgURL, img)
		return img, nil
	})
	if err != nil {
		metrics.QRFetches.WithLabelValues("error").Inc()
		return nil, errors.Wrap(domain.ErrExternalService, err.Error())
	}
	metrics.QRFetches.WithLabelValues("ok").Inc()
	return v.([]byte), nil
}

func (r *Renderer) download(ctx context.Context, imgURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build qr request")
	}
	req.Header.Set("Accept", "image/png")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "qr request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("qr endpoint returned %d", resp.StatusCode)
	}
	img, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read qr image")
	}
	if len(img) > maxImageBytes {
		return nil, errors.New("qr image too large")
	}
	if len(img) == 0 {
		return nil, errors.New("qr endpoint returned empty body")
	}
	return img, nil
}

// Warm queues a background fetch. It never blocks; a full queue drops the request.
func (r *Renderer) Warm(shareURL string) {
	if r.queue == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		return
	}
	select {
	case r.queue <- shareURL:
	default:
		util.Warn().Msg("qr warm queue full, dropping prefetch")
	}
}

func (r *Renderer) worker() {
	defer r.wg.Done()
	log := util.Component("qr")
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("qr worker panicked")
		}
	}()
	for shareURL := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.client.HTTPClient.Timeout*3)
		if _, err := r.Fetch(ctx, shareURL); err != nil {
			log.Warn().Err(err).Str("url", util.RedactURL(shareURL)).Msg("qr prefetch failed")
		}
		cancel()
	}
}

// Close stops the prefetch workers, waiting up to timeout for queued work.
func (r *Renderer) Close(timeout time.Duration) {
	if r.queue == nil {
		return
	}
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return
	}
	close(r.queue)
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		util.Warn().Msg("qr workers didn't stop in time")
	}
}
