package query

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/boardgamelab/rulesearch/internal/embedding"
	"github.com/boardgamelab/rulesearch/internal/models"
	"github.com/boardgamelab/rulesearch/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, storage.CorpusStore, embedding.Embedder) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	embedder := embedding.NewMockEmbedder(32)
	return NewEngine(store, embedder), store, embedder
}

func seedCorpus(t *testing.T, store storage.CorpusStore, embedder embedding.Embedder, game string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	g, err := store.CreateGame(ctx, game, "1.0")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertRules(ctx, g.ID, texts); err != nil {
		t.Fatal(err)
	}
	pending, err := store.RulesMissingEmbedding(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range pending {
		emb, err := embedder.Embed(ctx, p.Text)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.UpdateEmbedding(ctx, p.ID, emb); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSearch_InvalidArguments(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		question string
		limit    int
	}{
		{"empty question", "", 5},
		{"whitespace question", "   \t  ", 5},
		{"zero limit", "how do pieces move", 0},
		{"negative limit", "how do pieces move", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Search(ctx, tt.question, tt.limit)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Search() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSearch_EmptyCorpus(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	results, err := engine.Search(context.Background(), "how do pawns move", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty corpus returned %d results", len(results))
	}
}

func TestSearch_RanksExactMatchFirst(t *testing.T) {
	engine, store, embedder := newTestEngine(t)
	seedCorpus(t, store, embedder, "Chess Variant", "Move 3 spaces", "Roll two dice", "Kings move backwards")

	// The mock embedder is deterministic, so an exact-text query embeds to
	// the same vector as the stored rule and has similarity 1.
	results, err := engine.Search(context.Background(), "Roll two dice", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Rule != "Roll two dice" {
		t.Errorf("top result = %q, want exact match first", results[0].Rule)
	}
	if results[0].Similarity != 1.0 {
		t.Errorf("top similarity = %v, want 1.0", results[0].Similarity)
	}
	if results[0].GameName != "Chess Variant" {
		t.Errorf("GameName = %q, want Chess Variant", results[0].GameName)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("similarity not non-increasing at %d: %v > %v", i, results[i].Similarity, results[i-1].Similarity)
		}
	}
}

func TestSearch_RespectsLimit(t *testing.T) {
	engine, store, embedder := newTestEngine(t)
	seedCorpus(t, store, embedder, "Catan", "rule one", "rule two", "rule three", "rule four")

	results, err := engine.Search(context.Background(), "rule one", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
}

func TestSearch_TieBrokenByAscendingID(t *testing.T) {
	engine, store, embedder := newTestEngine(t)
	// Identical texts produce identical embeddings, so distances tie.
	seedCorpus(t, store, embedder, "Checkers", "Kings move backwards", "Kings move backwards")

	results, err := engine.Search(context.Background(), "Kings move backwards", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Similarity != results[1].Similarity {
		t.Fatalf("expected tied similarities, got %v and %v", results[0].Similarity, results[1].Similarity)
	}
	if results[0].RuleID >= results[1].RuleID {
		t.Errorf("tie not broken by ascending rule id: %d before %d", results[0].RuleID, results[1].RuleID)
	}
}

// matchStore returns canned matches, for exercising result mapping.
type matchStore struct {
	storage.CorpusStore
	matches []models.Match
}

func (s *matchStore) SimilaritySearch(ctx context.Context, emb []float32, limit int) ([]models.Match, error) {
	return s.matches, nil
}

func TestSearch_UnknownGameFallback(t *testing.T) {
	empty := ""
	name := "Chess Variant"
	store := &matchStore{matches: []models.Match{
		{RuleID: 1, Text: "orphan rule", GameName: nil, Distance: 0.1},
		{RuleID: 2, Text: "blank game", GameName: &empty, Distance: 0.2},
		{RuleID: 3, Text: "owned rule", GameName: &name, Distance: 0.3},
	}}
	engine := NewEngine(store, embedding.NewMockEmbedder(8))

	results, err := engine.Search(context.Background(), "orphan rule", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].GameName != models.UnknownGameName {
		t.Errorf("nil game name = %q, want %q", results[0].GameName, models.UnknownGameName)
	}
	if results[1].GameName != models.UnknownGameName {
		t.Errorf("empty game name = %q, want %q", results[1].GameName, models.UnknownGameName)
	}
	if results[2].GameName != "Chess Variant" {
		t.Errorf("owned rule game name = %q", results[2].GameName)
	}
}

func TestRoundSimilarity(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.0, 1.0},
		{1.0004, 1.0},  // drift above 1 clamps
		{-0.2, 0.0},    // negative similarity clamps to 0
		{0.87654, 0.877},
		{0.8764, 0.876},
		{0.0005, 0.001}, // rounds half away from zero
	}
	for _, tt := range tests {
		if got := roundSimilarity(tt.in); got != tt.want {
			t.Errorf("roundSimilarity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSearch_EmbedFailureSurfaces(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	provider := embedding.NewProvider(func() (embedding.Embedder, error) {
		return nil, errors.New("model file missing")
	})
	engine := NewEngine(store, provider)

	_, err = engine.Search(context.Background(), "how do pawns move", 5)
	if !errors.Is(err, embedding.ErrInitialization) {
		t.Errorf("Search() error = %v, want ErrInitialization", err)
	}
}
