// Package storage defines the persistence contract for the rules corpus.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boardgamelab/rulesearch/internal/models"
)

var (
	// ErrGameNotFound is returned by FindGame when no game matches.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameExists is returned by CreateGame when the (name, version) pair
	// already exists. Callers resolve the race by re-finding the game.
	ErrGameExists = errors.New("game already exists")
	// ErrUnavailable wraps connectivity failures to the backing store.
	ErrUnavailable = errors.New("store unavailable")
)

// CorpusStore persists games and rules and answers similarity queries.
//
// SimilaritySearch returns rows ordered by ascending cosine distance, ties
// broken by ascending rule id; only rules with a stored embedding
// participate, and games are left-joined so a dangling game reference yields
// a nil name rather than excluding the rule.
type CorpusStore interface {
	// Game operations
	FindGame(ctx context.Context, name, version string) (*models.Game, error)
	CreateGame(ctx context.Context, name, version string) (*models.Game, error)

	// Rule operations
	InsertRules(ctx context.Context, gameID int64, texts []string) (int, error)
	RulesMissingEmbedding(ctx context.Context) ([]models.PendingRule, error)
	UpdateEmbedding(ctx context.Context, ruleID int64, embedding []float32) error

	// Retrieval
	SimilaritySearch(ctx context.Context, queryVector []float32, limit int) ([]models.Match, error)

	// Stats
	CountGames(ctx context.Context) (int64, error)
	CountRules(ctx context.Context) (int64, error)
	CountEmbedded(ctx context.Context) (int64, error)

	Close() error
}

// validateRuleTexts rejects batches containing blank rule texts. Both store
// implementations call it before opening a transaction so a bad row never
// commits partial batches.
func validateRuleTexts(texts []string) error {
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("rule text must be non-empty (index %d)", i)
		}
	}
	return nil
}
