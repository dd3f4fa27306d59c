package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/FAIRiCUBE/querycube-web/internal/core/observability"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
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
	return rc, mr
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestSetMGetDel_HappyPath_AndMGetFiltersMissing(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rc.Set(ctx, "k2", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := rc.MGet(ctx, []string{"k1", "k2", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MGet size=%d want 2", len(got))
	}
	if string(got["k1"]) != "v1" || string(got["k2"]) != "v2" {
		t.Fatalf("unexpected values: %+v", got)
	}

	if err := rc.Del(ctx, "k1", "k2"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	got, err = rc.MGet(ctx, []string{"k1", "k2"})
	if err != nil || len(got) != 0 {
		t.Fatalf("after Del got=%v err=%v", got, err)
	}
}

func TestMSetWithTTL_And_Expiry(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	kv := map[string][]byte{"a": []byte("1"), "b": []byte("2")}
	if err := rc.MSetWithTTL(ctx, kv, 2*time.Second); err != nil {
		t.Fatalf("MSetWithTTL: %v", err)
	}
	got, err := rc.MGet(ctx, []string{"a", "b"})
	if err != nil || len(got) != 2 {
		t.Fatalf("pre expiry got=%v err=%v", got, err)
	}

	mr.FastForward(3 * time.Second)

	got, err = rc.MGet(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected keys to expire; got=%v", got)
	}
}

func TestIncr_Monotonic(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := rc.Incr(ctx, "gen:temp")
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != want {
			t.Fatalf("Incr=%d want %d", n, want)
		}
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, err := rc.MGet(ctx, []string{"k"}); err == nil {
		t.Fatalf("expected error on MGet with canceled context")
	}
	if err := rc.Del(ctx, "k"); err == nil {
		t.Fatalf("expected error on Del with canceled context")
	}
	if _, err := rc.Incr(ctx, "k"); err == nil {
		t.Fatalf("expected error on Incr with canceled context")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.Init(reg, true)

	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _ = rc.MGet(ctx, []string{"m1"})
	_ = rc.Del(ctx, "m1")

	n, err := testutil.GatherAndCount(reg, "cache_op_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// ping, set, mget, del
	if n < 4 {
		t.Fatalf("cache_op_total series=%d want >=4", n)
	}
	if c, _ := testutil.GatherAndCount(reg, "redis_operation_duration_seconds"); c == 0 {
		t.Fatal("missing redis_operation_duration_seconds histogram")
	}
}
