package redisstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/tilemesh/terrabuild/internal/core/observability"
	"github.com/tilemesh/terrabuild/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestSetGetDel_HappyPath_AndGetReportsMiss(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, ok, err := rc.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(val) != "v1" {
		t.Fatalf("Get = (%q, %v), want (v1, true)", val, ok)
	}

	if _, ok, err := rc.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing = (ok=%v, err=%v), want clean miss", ok, err)
	}

	if err := rc.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "k1"); ok {
		t.Fatalf("key survived Del")
	}
}

func TestHas_DoesNotNeedPayload(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if ok, err := rc.Has(ctx, "probe"); err != nil || ok {
		t.Fatalf("Has before Set = (%v, %v), want (false, nil)", ok, err)
	}
	if err := rc.Set(ctx, "probe", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, err := rc.Has(ctx, "probe"); err != nil || !ok {
		t.Fatalf("Has after Set = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestDelByPrefix_RemovesOnlyMatchingKeys(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 300; i++ {
		key := fmt.Sprintf("elev:image:9/%d/%d", i/16, i%16)
		if err := rc.Set(ctx, key, []byte("x"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	if err := rc.Set(ctx, "other:image:0/0/0", []byte("keep"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	n, err := rc.DelByPrefix(ctx, "elev:image:")
	if err != nil {
		t.Fatalf("DelByPrefix: %v", err)
	}
	if n != 300 {
		t.Fatalf("deleted %d keys, want 300", n)
	}
	if ok, _ := rc.Has(ctx, "other:image:0/0/0"); !ok {
		t.Fatalf("DelByPrefix removed a key outside the prefix")
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.NewProvider(metrics.BuildInfo{})
	observability.Init(p.Registerer(), true)

	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _, _ = rc.Get(ctx, "m1")
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `cache_op_total{ok="true",op="set"`) ||
		!strings.Contains(body, `cache_op_total{ok="true",op="get"`) ||
		!strings.Contains(body, `cache_op_total{ok="true",op="del"`) {
		t.Fatalf("missing cache_op_total metrics; got:\n%s", body)
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing redis_operation_duration_seconds histogram; got:\n%s", body)
	}
}
