// Package embedding turns rule text into fixed-length float vectors.
package embedding

import "context"

// Embedder produces vector embeddings for text. The dimension is fixed for
// the lifetime of the embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
