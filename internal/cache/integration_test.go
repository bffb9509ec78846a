//go:build integration
// +build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/glasscast/glasscast/internal/models"
)

// TestMemcachedCache_GetSet_Integration verifies that MemcachedCache stores and
// retrieves values when a memcached server is available on localhost.
func TestMemcachedCache_GetSet_Integration(t *testing.T) {
	c, err := NewMemcachedCache("localhost:11211", 500*time.Millisecond, 2)
	if err != nil {
		t.Fatalf("NewMemcachedCache() error = %v", err)
	}
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	ctx := context.Background()
	val := models.CurrentConditions{Location: "London", Temperature: 9.5}
	if err := c.Set(ctx, "it-memcached", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "it-memcached")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got.Location != val.Location {
		t.Errorf("Get() = %+v, ok = %v, want %+v", got, ok, val)
	}
}

// TestRedisCache_GetSetClear_Integration verifies Redis round-trip and prefix
// clear when a Redis server is available on localhost.
func TestRedisCache_GetSetClear_Integration(t *testing.T) {
	c, err := NewRedisCache("localhost:6379", "", 0)
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	val := models.CurrentConditions{Location: "Paris", Temperature: 14}
	if err := c.Set(ctx, "it-redis", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "it-redis")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got.Location != val.Location {
		t.Errorf("Get() = %+v, ok = %v, want %+v", got, ok, val)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "it-redis"); ok {
		t.Error("Get() ok = true after Clear, want false")
	}
}
