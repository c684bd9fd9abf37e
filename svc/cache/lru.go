package cache

import (
	"context"
	"crosssync/svc/persist"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is the in-process session store used when Redis is not configured.
// Entries expire after ttl and the least recently used are evicted past size.
type LRU struct {
	c   *lru.Cache[string, item]
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time
}
type item struct {
	val []byte
	exp time.Time
}

func NewLRU(size int, ttl time.Duration) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if size > 100000 {
		return nil, errors.New("cache size too large")
	}
	if ttl <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	c, err := lru.New[string, item](size)
	if err != nil {
		return nil, err
	}
	return &LRU{c: c, ttl: ttl, now: time.Now}, nil
}
func (l *LRU) Name() string { return "session" }

func (l *LRU) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.c.Get(key)
	if !ok {
		return nil, persist.ErrNotFound
	}
	if l.now().After(it.exp) {
		l.c.Remove(key)
		return nil, persist.ErrNotFound
	}
	out := make([]byte, len(it.val))
	copy(out, it.val)
	return out, nil
}
func (l *LRU) Set(ctx context.Context, key string, val []byte) error {
	return l.SetTTL(ctx, key, val, l.ttl)
}
func (l *LRU) SetTTL(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(val))
	copy(stored, val)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Add(key, item{
		val: stored,
		exp: l.now().Add(ttl),
	})
	return nil
}
func (l *LRU) Take(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.c.Peek(key)
	if !ok {
		return nil, persist.ErrNotFound
	}
	l.c.Remove(key)
	if l.now().After(it.exp) {
		return nil, persist.ErrNotFound
	}
	return it.val, nil
}
func (l *LRU) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Remove(key)
	return nil
}
func (l *LRU) Ping(ctx context.Context) error {
	return ctx.Err()
}
func (l *LRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Len()
}
