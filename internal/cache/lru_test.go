package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *clock { return &clock{now: time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)} }

func TestLRUCache_ExpiresAfterTTL(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[string](4, time.Minute).WithClock(clk.Now)

	c.Set("categories", "v1")
	if v, ok := c.Get("categories"); !ok || v != "v1" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	clk.Advance(2 * time.Minute)
	if _, ok := c.Get("categories"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not removed, size %d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should survive, it was used recently")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	clk := newClock()
	c := NewLRUCache[int](10, time.Minute).WithClock(clk.Now)
	c.Set("a", 1)
	c.Set("b", 2)
	clk.Advance(30 * time.Second)
	c.Set("c", 3)
	clk.Advance(45 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	if got := m.CleanAll(); got != 2 {
		t.Fatalf("CleanAll removed %d, want 2", got)
	}
	if c.Size() != 1 {
		t.Fatalf("size %d, want 1", c.Size())
	}
}

func TestLRUCache_GetOrLoad(t *testing.T) {
	c := NewLRUCache[[]string](4, time.Hour)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"Spesa"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "categories", load)
			if err != nil || len(v) != 1 {
				t.Errorf("GetOrLoad = %v, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("loader called %d times, want 1", calls.Load())
	}
}

func TestLRUCache_GetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := NewLRUCache[int](4, time.Hour)
	boom := errors.New("boom")

	if _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	v, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("GetOrLoad = %d, %v", v, err)
	}
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
