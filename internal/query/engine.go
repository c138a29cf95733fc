// Package query embeds a question and ranks corpus rules by similarity.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/boardgamelab/rulesearch/internal/embedding"
	"github.com/boardgamelab/rulesearch/internal/models"
	"github.com/boardgamelab/rulesearch/internal/storage"
)

// ErrInvalidArgument is returned for bad query parameters, before any
// embedding or store I/O happens.
var ErrInvalidArgument = errors.New("invalid argument")

// Engine answers natural-language questions against the rules corpus.
type Engine struct {
	store    storage.CorpusStore
	embedder embedding.Embedder
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query diagnostics.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a query engine over the given store and embedder.
func NewEngine(store storage.CorpusStore, embedder embedding.Embedder, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search embeds question and returns up to limit rules ranked by descending
// similarity, ties broken by ascending rule id. Similarity is 1 - cosine
// distance, clamped to [0,1] and rounded to 3 decimals. An empty embedded
// corpus yields an empty slice, not an error.
func (e *Engine) Search(ctx context.Context, question string, limit int) ([]models.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must be non-empty", ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidArgument, limit)
	}

	queryVector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	matches, err := e.store.SimilaritySearch(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	results := make([]models.QueryResult, 0, len(matches))
	for _, m := range matches {
		gameName := models.UnknownGameName
		if m.GameName != nil && *m.GameName != "" {
			gameName = *m.GameName
		}
		results = append(results, models.QueryResult{
			RuleID:     m.RuleID,
			Rule:       m.Text,
			GameName:   gameName,
			Similarity: roundSimilarity(1 - m.Distance),
		})
	}

	e.logger.Debug("search complete",
		zap.String("question", question),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// roundSimilarity clamps to [0,1] and rounds to 3 decimal places for
// presentation.
func roundSimilarity(sim float64) float64 {
	if sim < 0 {
		sim = 0
	} else if sim > 1 {
		sim = 1
	}
	return math.Round(sim*1000) / 1000
}
