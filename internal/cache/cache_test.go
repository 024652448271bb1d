package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit")
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive")
	}
	if c.Size() != 2 || c.Stats().Evictions != 1 {
		t.Fatalf("size %d stats %+v", c.Size(), c.Stats())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c, clk := newTestCache(4, time.Minute)
	c.Set("a", "1")
	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry should have expired")
	}
	c.Set("b", "2")
	c.Set("c", "3")
	clk.t = clk.t.Add(2 * time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("CleanExpired = %d, want 2", n)
	}
}

func TestLRUCache_PurgeAndDelete(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Delete("a")
	if c.Size() != 1 {
		t.Fatalf("size after delete = %d", c.Size())
	}
	if n := c.Purge(); n != 1 {
		t.Fatalf("Purge = %d", n)
	}
	if c.Size() != 0 {
		t.Fatal("cache should be empty")
	}
	c.Set("x", "y")
	if v, ok := c.Get("x"); !ok || v != "y" {
		t.Fatal("cache unusable after purge")
	}
}

func TestManager_PurgeAll(t *testing.T) {
	a, _ := newTestCache(4, time.Minute)
	b, _ := newTestCache(4, time.Minute)
	a.Set("1", "x")
	b.Set("1", "x")
	b.Set("2", "x")
	m := NewManager(nil)
	m.Register("a", a)
	m.Register("b", b)
	if n := m.PurgeAll(); n != 3 {
		t.Fatalf("PurgeAll = %d, want 3", n)
	}
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, 10*time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestLRUCache_PeekKeepsStats(t *testing.T) {
	c, clk := newTestCache(2, time.Minute)
	c.Set("a", "1")
	if v, ok := c.Peek("a"); !ok || v != "1" {
		t.Fatalf("Peek(a) = %q, %v", v, ok)
	}
	if st := c.Stats(); st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("Peek changed stats: %+v", st)
	}
	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Peek("a"); ok {
		t.Fatal("Peek returned an expired entry")
	}
}
