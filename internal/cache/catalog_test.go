package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tbourn/quilt-shop-backend/internal/config"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}

type page struct {
	IDs   []int64 `json:"ids"`
	Total int64   `json:"total"`
}

func TestCatalog_SetGetInvalidate(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	c := NewCatalog(client, time.Minute)
	ctx := context.Background()

	var got page
	hit, err := c.Get(ctx, Key("patterns", 1, 20), &got)
	if err != nil || hit {
		t.Fatalf("expected miss, got hit=%v err=%v", hit, err)
	}

	if err := c.Set(ctx, Key("patterns", 1, 20), page{IDs: []int64{3, 2, 1}, Total: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, Key("featured"), page{IDs: []int64{1}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := client.Set(ctx, "unrelated", "keep", 0).Err(); err != nil {
		t.Fatalf("seed unrelated: %v", err)
	}

	hit, err = c.Get(ctx, Key("patterns", 1, 20), &got)
	if err != nil || !hit || got.Total != 3 || len(got.IDs) != 3 {
		t.Fatalf("unexpected read: hit=%v err=%v got=%+v", hit, err, got)
	}
	if ttl := mr.TTL(Key("patterns", 1, 20)); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mr.Exists(Key("patterns", 1, 20)) || mr.Exists(Key("featured")) {
		t.Fatalf("catalog keys survived invalidation")
	}
	if !mr.Exists("unrelated") {
		t.Fatalf("invalidation removed a foreign key")
	}
}

func TestCatalog_Expiry(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	c := NewCatalog(client, time.Minute)
	ctx := context.Background()
	_ = c.Set(ctx, Key("categories"), []string{"baby"})
	mr.FastForward(2 * time.Minute)

	var got []string
	if hit, _ := c.Get(ctx, Key("categories"), &got); hit {
		t.Fatalf("expired entry served")
	}
}

func TestCatalog_CorruptEntryIsMiss(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	_ = mr.Set(Key("featured"), "{not json")
	c := NewCatalog(client, time.Minute)

	var got page
	hit, err := c.Get(context.Background(), Key("featured"), &got)
	if err != nil || hit {
		t.Fatalf("expected silent miss, got hit=%v err=%v", hit, err)
	}
	if mr.Exists(Key("featured")) {
		t.Fatalf("corrupt entry should be dropped")
	}
}

func TestCatalog_NilIsDisabled(t *testing.T) {
	var c *Catalog
	ctx := context.Background()
	if hit, err := c.Get(ctx, "k", &page{}); hit || err != nil {
		t.Fatalf("nil cache Get = %v, %v", hit, err)
	}
	if err := c.Set(ctx, "k", 1); err != nil {
		t.Fatalf("nil cache Set: %v", err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("nil cache Invalidate: %v", err)
	}
}

func TestNewClient_PingFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := NewClient(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Fatalf("expected ping failure against closed server")
	}
}

func TestKey(t *testing.T) {
	if got := Key("patterns", 2, 10); got != "catalog:patterns:2:10" {
		t.Fatalf("Key = %q", got)
	}
}
