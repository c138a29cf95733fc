package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/boardgamelab/rulesearch/internal/config"
	"github.com/boardgamelab/rulesearch/internal/embedding"
	"github.com/boardgamelab/rulesearch/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "no-config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = filepath.Join(t.TempDir(), "test.db")
	return cfg
}

func strPtr(s string) *string { return &s }

// A missing model must fail every embed-dependent operation with the sticky
// initialization error instead of degrading to hash-based rankings.
func TestInitializeComponents_MissingModelFailsClosed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.ModelPath = filepath.Join(t.TempDir(), "no-such-model.onnx")

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	ctx := context.Background()

	// Ingestion stores rules without embeddings, so it still works.
	doc := &models.SourceDocument{Pages: []models.Page{{Text: strPtr("castling moves the king two squares")}}}
	if _, err := components.Pipeline.ProcessDocument(ctx, doc, "Chess", "1.0"); err != nil {
		t.Fatal(err)
	}

	// Backfill and search both need the model and must surface the failure.
	if _, err := components.Pipeline.Backfill(ctx); !errors.Is(err, embedding.ErrInitialization) {
		t.Errorf("Backfill() error = %v, want ErrInitialization", err)
	}
	if _, err := components.Engine.Search(ctx, "how do castling moves work", 5); !errors.Is(err, embedding.ErrInitialization) {
		t.Errorf("Search() error = %v, want ErrInitialization", err)
	}
}

func TestInitializeComponents_MockIsOptIn(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.UseMock = true
	cfg.Embedding.Dimensions = 32

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	ctx := context.Background()

	doc := &models.SourceDocument{Pages: []models.Page{{Text: strPtr("Roll two dice")}}}
	if _, err := components.Pipeline.ProcessDocument(ctx, doc, "Backgammon", "1.0"); err != nil {
		t.Fatal(err)
	}
	if _, err := components.Pipeline.Backfill(ctx); err != nil {
		t.Fatal(err)
	}
	results, err := components.Engine.Search(ctx, "Roll two dice", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Similarity != 1.0 {
		t.Errorf("results = %+v, want one exact match", results)
	}
}
