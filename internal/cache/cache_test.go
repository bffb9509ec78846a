package cache

import (
	"context"
	"testing"
	"time"

	"github.com/glasscast/glasscast/internal/models"
)

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them correctly with the expected data.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := models.CurrentConditions{Location: "London", Temperature: 12.5, Icon: "cloud.fill"}
	if err := c.Set(ctx, "51.5074,-0.1278", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "51.5074,-0.1278")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Location != val.Location || got.Temperature != val.Temperature || got.Icon != val.Icon {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, ok, err := c.Get(ctx, "0.0000,0.0000")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Stale verifies that Get returns ok=false once the
// entry's age exceeds its TTL. The entry is not removed: staleness is judged
// at read time only, and the slot persists until overwritten or cleared.
func TestInMemoryCache_Get_Stale(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := models.CurrentConditions{Location: "London"}
	if err := c.Set(ctx, "51.5074,-0.1278", val, 1*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	_, ok, err := c.Get(ctx, "51.5074,-0.1278")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for stale entry")
	}

	c.mu.RLock()
	_, present := c.data["51.5074,-0.1278"]
	c.mu.RUnlock()
	if !present {
		t.Error("stale entry was evicted; entries should persist until overwritten or cleared")
	}
}

// TestInMemoryCache_Set_Overwrite verifies that a fresh Set replaces a stale
// entry under the same key.
func TestInMemoryCache_Set_Overwrite(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	key := "51.5074,-0.1278"

	if err := c.Set(ctx, key, models.CurrentConditions{Temperature: 10}, 1*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	if err := c.Set(ctx, key, models.CurrentConditions{Temperature: 20}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false after overwrite, want true")
	}
	if got.Temperature != 20 {
		t.Errorf("Get() temperature = %v, want 20 (overwritten value)", got.Temperature)
	}
}

// TestInMemoryCache_Clear verifies that Clear drops all entries unconditionally.
func TestInMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_ = c.Set(ctx, "a", models.CurrentConditions{}, time.Minute)
	_ = c.Set(ctx, "b", models.CurrentConditions{}, time.Minute)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, key := range []string{"a", "b"} {
		if _, ok, _ := c.Get(ctx, key); ok {
			t.Errorf("Get(%q) ok = true after Clear, want false", key)
		}
	}
}
