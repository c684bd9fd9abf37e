package test

import (
	"bytes"
	"context"
	"crosssync/svc/api"
	"encoding/json"
	"io"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type LoadTestMetrics struct {
	TotalRequests   int64
	SuccessCount    int64
	ErrorCount      int64
	Latencies       []time.Duration
	MemoryGrowthMB  float64
	GoroutineGrowth int
	mu              sync.Mutex
}

func (m *LoadTestMetrics) RecordLatency(d time.Duration) {
	m.mu.Lock()
	m.Latencies = append(m.Latencies, d)
	m.mu.Unlock()
}

func (m *LoadTestMetrics) Percentile(p float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), m.Latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * p / 100.0)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (m *LoadTestMetrics) ErrorRate() float64 {
	total := atomic.LoadInt64(&m.TotalRequests)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&m.ErrorCount)) / float64(total) * 100
}

func (m *LoadTestMetrics) report(t *testing.T, name string) {
	t.Helper()
	t.Logf("%s results:", name)
	t.Logf("  Total requests: %d", m.TotalRequests)
	t.Logf("  Success: %d, Errors: %d (%.2f%%)", m.SuccessCount, m.ErrorCount, m.ErrorRate())
	t.Logf("  P50: %v, P95: %v, P99: %v", m.Percentile(50), m.Percentile(95), m.Percentile(99))
	t.Logf("  Memory growth: %.2f MB", m.MemoryGrowthMB)
	t.Logf("  Goroutine growth: %d", m.GoroutineGrowth)
}

// shareAndOpen creates a share and opens it once through its link.
func shareAndOpen(s *stack, m *LoadTestMetrics, content string) {
	body, err := json.Marshal(api.ShareReq{Content: content, UserName: "load"})
	if err != nil {
		atomic.AddInt64(&m.ErrorCount, 1)
		return
	}
	client := s.ts.Client()

	start := time.Now()
	resp, err := client.Post(s.ts.URL+"/api/shares", "application/json", bytes.NewReader(body))
	m.RecordLatency(time.Since(start))
	atomic.AddInt64(&m.TotalRequests, 1)
	if err != nil {
		atomic.AddInt64(&m.ErrorCount, 1)
		return
	}
	var created api.ShareResp
	err = json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if err != nil || resp.StatusCode != http.StatusCreated {
		atomic.AddInt64(&m.ErrorCount, 1)
		return
	}
	atomic.AddInt64(&m.SuccessCount, 1)

	start = time.Now()
	resp, err = client.Get(s.ts.URL + linkPath(created.URL))
	m.RecordLatency(time.Since(start))
	atomic.AddInt64(&m.TotalRequests, 1)
	if err != nil {
		atomic.AddInt64(&m.ErrorCount, 1)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&m.ErrorCount, 1)
		return
	}
	atomic.AddInt64(&m.SuccessCount, 1)
}

func linkPath(link string) string {
	if i := strings.Index(link, "/shared/"); i >= 0 {
		return link[i:]
	}
	return link
}

func runLoad(t *testing.T, s *stack, m *LoadTestMetrics, rps int, d time.Duration, content string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d+30*time.Second)
	defer cancel()

	goroutineStart := runtime.NumGoroutine()
	var memStart runtime.MemStats
	runtime.ReadMemStats(&memStart)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	perTick := rps / 100
	if perTick < 1 {
		perTick = 1
	}
	var wg sync.WaitGroup
	startTime := time.Now()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			if time.Since(startTime) > d {
				break loop
			}
			for i := 0; i < perTick; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					shareAndOpen(s, m, content)
				}()
			}
		}
	}
	wg.Wait()

	var memEnd runtime.MemStats
	runtime.ReadMemStats(&memEnd)
	m.MemoryGrowthMB = (float64(memEnd.Alloc) - float64(memStart.Alloc)) / 1024 / 1024
	m.GoroutineGrowth = runtime.NumGoroutine() - goroutineStart
}

func TestLoadSustained(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping sustained load test in short mode")
	}
	s := newStack(t, stackOpts{redis: true})
	m := &LoadTestMetrics{}
	runLoad(t, s, m, 200, 10*time.Second, "<p>"+strings.Repeat("sustained load ", 20)+"</p>")
	m.report(t, "Sustained")

	if m.ErrorRate() > 0.1 {
		t.Errorf("Error rate %.2f%% exceeds threshold of 0.1%%", m.ErrorRate())
	}
	if p99 := m.Percentile(99); p99 > 500*time.Millisecond {
		t.Errorf("P99 latency %v exceeds 500ms threshold", p99)
	}
}

func TestLoadLargeContent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping large content load test in short mode")
	}
	s := newStack(t, stackOpts{})
	chunk := "<p><b>Grüße</b> 日本語 "
	content := strings.Repeat(chunk, int(s.cfg.MaxContentSize)/4/len(chunk))
	m := &LoadTestMetrics{}
	runLoad(t, s, m, 50, 5*time.Second, content)
	m.report(t, "Large content")

	if m.ErrorRate() > 0.1 {
		t.Errorf("Error rate %.2f%% exceeds threshold of 0.1%%", m.ErrorRate())
	}
}

func TestLoadSpikes(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping spike test in short mode")
	}
	s := newStack(t, stackOpts{})
	m := &LoadTestMetrics{}
	for spike := 0; spike < 3; spike++ {
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				shareAndOpen(s, m, "<p>spike</p>")
			}()
		}
		wg.Wait()
		time.Sleep(500 * time.Millisecond)
	}
	m.report(t, "Spikes")

	if m.ErrorRate() > 1 {
		t.Errorf("Error rate %.2f%% under spikes exceeds 1%%", m.ErrorRate())
	}
}
