// Package ingest loads source documents into the rules corpus and backfills
// embeddings for rules that lack one.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/boardgamelab/rulesearch/internal/embedding"
	"github.com/boardgamelab/rulesearch/internal/models"
	"github.com/boardgamelab/rulesearch/internal/storage"
)

// Pipeline ingests source documents and backfills embeddings.
type Pipeline struct {
	store    storage.CorpusStore
	embedder embedding.Embedder
	logger   *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets a logger for ingestion diagnostics (skipped pages,
// backfill failures).
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline over the given store and embedder.
func NewPipeline(store storage.CorpusStore, embedder embedding.Embedder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:    store,
		embedder: embedder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report summarizes one document ingestion. Counts are reported even on
// partial success.
type Report struct {
	PagesFound    int
	PagesSkipped  int
	RulesInserted int
	Game          *models.Game
	GameCreated   bool
}

// ProcessDocument extracts rule texts from doc and inserts them for the game
// identified by (gameName, gameVersion), creating the game on first sight.
// Pages without a text field are skipped with a warning; texts that are empty
// after trimming are dropped. The rule insert is atomic: on error no rules
// from this document are committed.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc *models.SourceDocument, gameName, gameVersion string) (*Report, error) {
	if doc == nil || doc.Pages == nil {
		return nil, fmt.Errorf("%w: missing pages", ErrMalformedDocument)
	}
	if gameVersion == "" {
		gameVersion = models.DefaultGameVersion
	}

	report := &Report{}
	var texts []string
	for i, page := range doc.Pages {
		if page.Text == nil {
			report.PagesSkipped++
			p.logger.Warn("skipping page: missing text field", zap.Int("page", i))
			continue
		}
		report.PagesFound++
		text := strings.TrimSpace(*page.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
	}

	game, created, err := p.resolveGame(ctx, gameName, gameVersion)
	if err != nil {
		return nil, err
	}
	report.Game = game
	report.GameCreated = created

	inserted, err := p.store.InsertRules(ctx, game.ID, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rules: %w", err)
	}
	report.RulesInserted = inserted

	p.logger.Info("document ingested",
		zap.String("game", game.Name),
		zap.String("version", game.Version),
		zap.Bool("game_created", created),
		zap.Int("pages_found", report.PagesFound),
		zap.Int("pages_skipped", report.PagesSkipped),
		zap.Int("rules_inserted", report.RulesInserted),
	)
	return report, nil
}

// resolveGame finds or creates the game record. Two concurrent ingestions of
// the same (name, version) can both miss the find and race on create; the
// loser re-finds the winner's row instead of failing.
func (p *Pipeline) resolveGame(ctx context.Context, name, version string) (*models.Game, bool, error) {
	if strings.TrimSpace(name) == "" {
		return nil, false, fmt.Errorf("game name must be non-empty")
	}

	game, err := p.store.FindGame(ctx, name, version)
	if err == nil {
		return game, false, nil
	}
	if !errors.Is(err, storage.ErrGameNotFound) {
		return nil, false, err
	}

	game, err = p.store.CreateGame(ctx, name, version)
	if err == nil {
		return game, true, nil
	}
	if !errors.Is(err, storage.ErrGameExists) {
		return nil, false, err
	}

	game, err = p.store.FindGame(ctx, name, version)
	if err != nil {
		return nil, false, fmt.Errorf("failed to re-resolve game after create conflict: %w", err)
	}
	return game, false, nil
}
