package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestProvider_InitializesOnce(t *testing.T) {
	var calls int32
	p := NewProvider(func() (Embedder, error) {
		atomic.AddInt32(&calls, 1)
		return NewMockEmbedder(8), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Embed(context.Background(), "player movement"); err != nil {
				t.Errorf("Embed() error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("factory called %d times, want 1", n)
	}
}

func TestProvider_StickyInitFailure(t *testing.T) {
	var calls int32
	p := NewProvider(func() (Embedder, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("model file missing")
	})

	for i := 0; i < 3; i++ {
		_, err := p.Embed(context.Background(), "dice")
		if !errors.Is(err, ErrInitialization) {
			t.Fatalf("Embed() error = %v, want ErrInitialization", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("factory called %d times after failure, want 1", n)
	}
	if dims := p.Dimensions(); dims != 0 {
		t.Errorf("Dimensions() = %d after failed init, want 0", dims)
	}
}

func TestProvider_LazyUntilFirstUse(t *testing.T) {
	var calls int32
	p := NewProvider(func() (Embedder, error) {
		atomic.AddInt32(&calls, 1)
		return NewMockEmbedder(8), nil
	})
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("factory called before first use")
	}
	if _, err := p.EmbedBatch(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("factory called %d times, want 1", n)
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, err := e.Embed(context.Background(), "roll two dice")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(context.Background(), "roll two dice")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("expected 16 dimensions, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}
