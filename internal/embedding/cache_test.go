package embedding

import (
	"sync"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(2)
	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("a", []float32{1})
	got, ok := c.Get("a")
	if !ok || got[0] != 1 {
		t.Errorf("Get(a) = %v, %v", got, ok)
	}

	// Overwrite keeps a single entry.
	c.Set("a", []float32{2})
	got, _ = c.Get("a")
	if got[0] != 2 || c.Len() != 1 {
		t.Errorf("after overwrite: %v, len %d", got, c.Len())
	}
}

// Get updates LRU recency, so concurrent readers mutate shared state; this
// fails under the race detector if Get ever drops back to a read lock.
func TestCache_ConcurrentGets(t *testing.T) {
	c := NewCache(4)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "a"
			if i%2 == 0 {
				key = "b"
			}
			for j := 0; j < 1000; j++ {
				if _, ok := c.Get(key); !ok {
					t.Errorf("lost key %q", key)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestCache_EvictsOldest(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a") // a is now most recently used
	c.Set("c", []float32{3})

	if _, ok := c.Get("b"); ok {
		t.Error("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a retained")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c retained")
	}
}
