package cache

import (
	"context"
	"crosssync/svc/persist"
	"errors"
	"testing"
	"time"
)

func TestLRUSetGet(t *testing.T) {
	l, err := NewLRU(10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := l.Set(ctx, "shared_a", []byte("one")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := l.Get(ctx, "shared_a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "one" {
		t.Errorf("Get = %q", got)
	}
	got[0] = 'X'
	again, _ := l.Get(ctx, "shared_a")
	if string(again) != "one" {
		t.Error("returned slice must not alias the stored value")
	}
}

func TestLRUExpiry(t *testing.T) {
	l, err := NewLRU(10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()
	_ = l.Set(ctx, "k", []byte("v"))
	now = now.Add(2 * time.Minute)
	if _, err := l.Get(ctx, "k"); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("expired entry should be gone, got %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("expired entry should be removed, len=%d", l.Len())
	}
}

func TestLRUEviction(t *testing.T) {
	l, _ := NewLRU(2, time.Minute)
	ctx := context.Background()
	_ = l.Set(ctx, "a", []byte("1"))
	_ = l.Set(ctx, "b", []byte("2"))
	_ = l.Set(ctx, "c", []byte("3"))
	if _, err := l.Get(ctx, "a"); !errors.Is(err, persist.ErrNotFound) {
		t.Error("oldest entry should be evicted")
	}
}

func TestLRUDeleteAndCancelledContext(t *testing.T) {
	l, _ := NewLRU(2, time.Minute)
	ctx := context.Background()
	_ = l.Set(ctx, "a", []byte("1"))
	_ = l.Delete(ctx, "a")
	if _, err := l.Get(ctx, "a"); !errors.Is(err, persist.ErrNotFound) {
		t.Error("deleted entry still present")
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := l.Set(cctx, "b", []byte("2")); err == nil {
		t.Error("cancelled context should fail Set")
	}
	if err := l.Ping(cctx); err == nil {
		t.Error("cancelled context should fail Ping")
	}
}

func TestNewLRUValidation(t *testing.T) {
	if _, err := NewLRU(0, time.Minute); err == nil {
		t.Error("zero size should fail")
	}
	if _, err := NewLRU(200000, time.Minute); err == nil {
		t.Error("oversized cache should fail")
	}
	if _, err := NewLRU(10, 0); err == nil {
		t.Error("zero ttl should fail")
	}
}

func TestLRUTake(t *testing.T) {
	l, err := NewLRU(10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = l.Set(ctx, "handoff_t", []byte("once"))
	got, err := l.Take(ctx, "handoff_t")
	if err != nil || string(got) != "once" {
		t.Fatalf("Take = %q, %v", got, err)
	}
	if _, err := l.Take(ctx, "handoff_t"); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("second Take should be ErrNotFound, got %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d after Take", l.Len())
	}
}
