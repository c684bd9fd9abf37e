package test

import (
	"bytes"
	"crosssync/cfg"
	"crosssync/svc/api"
	"crosssync/svc/cache"
	"crosssync/svc/db"
	"crosssync/svc/lim"
	"crosssync/svc/persist"
	"crosssync/svc/qr"
	"crosssync/svc/svc"
	"crosssync/svc/util"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	envLoadOnce sync.Once
	envLoadErr  error
	dbSeq       atomic.Int64
)

func loadTestEnv() error {
	envLoadOnce.Do(func() {
		paths := []string{
			".env.test",
			"../.env.test",
			"../../.env.test",
		}
		for _, p := range paths {
			absPath, err := filepath.Abs(p)
			if err != nil {
				continue
			}
			if _, err := os.Stat(absPath); err != nil {
				continue
			}
			envLoadErr = godotenv.Load(absPath)
			return
		}
	})
	return envLoadErr
}

func createTestConfig(t *testing.T) *cfg.Cfg {
	t.Helper()
	if err := loadTestEnv(); err != nil {
		t.Fatalf("load .env.test: %v", err)
	}
	c, err := cfg.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	c.DatabasePath = fmt.Sprintf("file:itest%d?mode=memory&cache=shared", dbSeq.Add(1))
	if c.BaseURL == "" || c.BaseURL == "http://localhost:8080" {
		c.BaseURL = "https://crosssync.test"
	}
	return c
}

func createTestDB(t *testing.T, c *cfg.Cfg) *db.SQLite {
	t.Helper()
	sqlDB, err := db.NewSQLiteWithConfig(c.DatabasePath, 4, 2, c.DBQueryTimeout)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func createTestRedis(t *testing.T, c *cfg.Cfg) (*db.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:            mr.Addr(),
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
	})
	r := db.NewRedisFromClient(client, 500*time.Millisecond, c.SessionTTL)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func createTestLRU(t *testing.T, c *cfg.Cfg) *cache.LRU {
	t.Helper()
	l, err := cache.NewLRU(c.LRUCacheSize, c.SessionTTL)
	if err != nil {
		t.Fatalf("create lru: %v", err)
	}
	return l
}

// qrStub stands in for the QR image service and counts upstream hits.
type qrStub struct {
	srv  *httptest.Server
	hits atomic.Int64
	fail atomic.Bool
}

func createQRStub(t *testing.T) *qrStub {
	t.Helper()
	s := &qrStub{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if s.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("\x89PNG" + r.URL.Query().Get("data")))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

type stackOpts struct {
	redis      bool
	writeLimit int
}

// stack is the whole server wired the way cmd/crosssync wires it.
type stack struct {
	cfg     *cfg.Cfg
	durable *db.SQLite
	session persist.Store
	redis   *miniredis.Miniredis
	shim    *persist.Shim
	content *svc.Content
	lim     *lim.Limiter
	qr      *qrStub
	ts      *httptest.Server
}

func newStack(t *testing.T, o stackOpts) *stack {
	t.Helper()
	c := createTestConfig(t)
	if o.writeLimit > 0 {
		c.RateLimit.ConservativeLimit = o.writeLimit
	}
	util.InitLog("error", false)
	s := &stack{cfg: c, qr: createQRStub(t)}
	c.QR.Endpoint = s.qr.srv.URL
	s.durable = createTestDB(t, c)
	var counter lim.Counter
	if o.redis {
		r, mr := createTestRedis(t, c)
		s.session, s.redis, counter = r, mr, r
	} else {
		s.session = createTestLRU(t, c)
	}
	s.shim = persist.NewShim(s.durable, s.session)
	renderer := qr.New(qr.Config{
		Endpoint:  c.QR.Endpoint,
		Size:      c.QR.Size,
		Timeout:   c.QR.Timeout,
		CacheSize: c.QR.CacheSize,
		Workers:   c.QR.Workers,
	})
	renderer.Client().RetryMax = 0
	s.content = svc.NewContent(s.shim, renderer, c)
	s.lim = lim.New(c.RateLimit.RPM, c.RateLimit.Burst, c.RateLimit.ConservativeLimit, counter, c.TrustedProxies)
	s.ts = httptest.NewServer(api.NewServer(c, s.content, s.lim, s.shim))
	t.Cleanup(func() {
		s.ts.Close()
		s.content.Shutdown()
		s.lim.Stop()
	})
	return s
}

func (s *stack) do(t *testing.T, method, target string, body interface{}) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, s.ts.URL+target, rdr)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	return resp
}

func (s *stack) share(t *testing.T, content, user string) api.ShareResp {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/shares", api.ShareReq{Content: content, UserName: user})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("create share: %d %s", resp.StatusCode, b)
	}
	var out api.ShareResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func (s *stack) view(t *testing.T, target string) (api.ViewResp, int) {
	t.Helper()
	resp := s.do(t, http.MethodGet, target, nil)
	defer resp.Body.Close()
	var out api.ViewResp
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
	}
	return out, resp.StatusCode
}

// linkTarget is the path and query of a share link, ready to hit the test server.
func linkTarget(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	return u.RequestURI()
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["code"]
}
