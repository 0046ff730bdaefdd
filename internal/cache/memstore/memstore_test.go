package memstore

import (
	"context"
	"testing"
	"time"
)

func TestSetGetHasDel(t *testing.T) {
	s := New(8)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(val) != "v" {
		t.Fatalf("Get = (%q, %v, %v), want (v, true, nil)", val, ok, err)
	}
	if ok, _ := s.Has(ctx, "k"); !ok {
		t.Fatalf("Has = false after Set")
	}
	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("key survived Del")
	}
}

func TestTTL_ExpiredEntriesAreMisses(t *testing.T) {
	s := New(8)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatalf("fresh entry reported as miss")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("expired entry reported as hit")
	}
}

func TestEviction_BoundedByCapacity(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	_ = s.Set(ctx, "a", []byte("1"), 0)
	_ = s.Set(ctx, "b", []byte("2"), 0)
	_ = s.Set(ctx, "c", []byte("3"), 0)

	hits := 0
	for _, k := range []string{"a", "b", "c"} {
		if _, ok, _ := s.Get(ctx, k); ok {
			hits++
		}
	}
	if hits != 2 {
		t.Fatalf("hits = %d, want 2 with capacity 2", hits)
	}
}
