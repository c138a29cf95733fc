package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInitialization marks a failed embedding model load. Once initialization
// fails, every pending and subsequent call fails with this error until the
// process restarts.
var ErrInitialization = errors.New("embedding model initialization failed")

// Provider is a process-wide, lazily-initialized handle on an Embedder.
// The underlying model is loaded at most once, on first use; concurrent
// callers before initialization completes wait on the same load instead of
// triggering redundant ones. A load failure is sticky.
//
// Provider itself satisfies Embedder, so it can be injected wherever an
// embedder is needed without exposing the initialization state.
type Provider struct {
	factory  func() (Embedder, error)
	once     sync.Once
	embedder Embedder
	err      error
}

// NewProvider returns a Provider that builds its Embedder with factory on
// first use. The factory is called at most once per process lifetime.
func NewProvider(factory func() (Embedder, error)) *Provider {
	return &Provider{factory: factory}
}

func (p *Provider) load() {
	p.embedder, p.err = p.factory()
}

// get initializes the embedder if needed and returns it, or the sticky
// initialization error.
func (p *Provider) get() (Embedder, error) {
	p.once.Do(p.load)
	if p.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, p.err)
	}
	return p.embedder, nil
}

// Embed returns the embedding for text, initializing the model on first use.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := p.get()
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

// EmbedBatch returns embeddings for texts, initializing the model on first use.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := p.get()
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, texts)
}

// Dimensions returns the embedding dimension, or 0 if the model failed to load.
func (p *Provider) Dimensions() int {
	e, err := p.get()
	if err != nil {
		return 0
	}
	return e.Dimensions()
}

// Close releases the underlying embedder if it was ever initialized. Closing
// an uninitialized Provider marks it failed rather than loading the model.
func (p *Provider) Close() error {
	p.once.Do(func() {
		p.err = errors.New("provider closed before first use")
	})
	if p.embedder != nil {
		return p.embedder.Close()
	}
	return nil
}
