package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

func TestNewWithoutAddrIsDisabled(t *testing.T) {
	rdb, err := New(context.Background(), logger.NewNop(), Config{})
	if err != nil || rdb != nil {
		t.Fatalf("expected nil client and nil error, got %v %v", rdb, err)
	}
}

func TestDisabledCacheMisses(t *testing.T) {
	var nilCache *Cache
	for _, c := range []*Cache{nilCache, NewCache(nil, "x")} {
		var out map[string]int
		hit, err := c.GetJSON(context.Background(), "k", &out)
		if hit || err != nil {
			t.Fatalf("disabled cache should miss, got hit=%v err=%v", hit, err)
		}
		if err := c.SetJSON(context.Background(), "k", map[string]int{"a": 1}, time.Second); err != nil {
			t.Fatalf("SetJSON on disabled cache: %v", err)
		}
		if _, err := c.IncrWindow(context.Background(), "k", time.Second); err == nil {
			t.Fatalf("IncrWindow should fail without redis")
		}
	}
}

func TestCacheKey(t *testing.T) {
	if got := NewCache(nil, "studyhub:").Key("feed", "u1", "0"); got != "studyhub:feed:u1:0" {
		t.Fatalf("key=%q", got)
	}
	if got := NewCache(nil, "").Key("a", "b"); got != "a:b" {
		t.Fatalf("key=%q", got)
	}
}
