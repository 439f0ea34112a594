package cache

import (
	"testing"
	"time"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 42, time.Minute)

	got, ok := c.Get("a")
	if !ok || got != 42 {
		t.Fatalf("expected 42, got %d (hit=%v)", got, ok)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected a miss for an unknown key")
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("key", "value", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("key"); ok {
		t.Fatalf("expected the entry to expire")
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("key", "value", 0)

	// Zero TTL never expires on its own.
	if _, ok := c.Get("key"); !ok {
		t.Fatalf("expected a hit for a non-expiring entry")
	}

	c.Delete("key")
	if _, ok := c.Get("key"); ok {
		t.Fatalf("expected a miss after delete")
	}
}

func TestTTLCacheNilReceiver(t *testing.T) {
	var c *TTLCache[string, int]
	c.Set("key", 1, time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Fatalf("expected nil cache to always miss")
	}
	c.Delete("key")
}
