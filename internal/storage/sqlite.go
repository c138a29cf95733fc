// SQLite implementation of CorpusStore. Embeddings are stored as JSON and
// similarity is computed exactly in Go over the full embedded corpus.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/boardgamelab/rulesearch/internal/models"
	"github.com/boardgamelab/rulesearch/internal/vector"
)

// SQLiteStore implements CorpusStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '1.0',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, version)
	);

	CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		rule TEXT NOT NULL,
		game_id INTEGER REFERENCES games(id),
		embedding TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rules_game_id ON rules(game_id);
	`
	_, err := db.Exec(schema)
	return err
}

// FindGame returns the game with the given name and version, or ErrGameNotFound.
func (s *SQLiteStore) FindGame(ctx context.Context, name, version string) (*models.Game, error) {
	var game models.Game
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, version, created_at, updated_at FROM games
		 WHERE name = ? AND version = ?`, name, version,
	).Scan(&game.ID, &game.Name, &game.Version, &game.CreatedAt, &game.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s v%s", ErrGameNotFound, name, version)
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// CreateGame inserts a game. A uniqueness conflict on (name, version)
// surfaces as ErrGameExists so callers can re-resolve.
func (s *SQLiteStore) CreateGame(ctx context.Context, name, version string) (*models.Game, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO games (name, version, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, version, now, now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s v%s", ErrGameExists, name, version)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Game{ID: id, Name: name, Version: version, CreatedAt: now, UpdatedAt: now}, nil
}

// InsertRules batch-inserts rule texts for a game in one transaction; either
// all rows are committed or none are.
func (s *SQLiteStore) InsertRules(ctx context.Context, gameID int64, texts []string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}
	if err := validateRuleTexts(texts); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rules (rule, game_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now()
	for _, text := range texts {
		if _, err := stmt.ExecContext(ctx, text, gameID, now, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(texts), nil
}

// RulesMissingEmbedding returns (id, text) of rules with no stored embedding,
// ordered by id.
func (s *SQLiteStore) RulesMissingEmbedding(ctx context.Context) ([]models.PendingRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rule FROM rules WHERE embedding IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []models.PendingRule
	for rows.Next() {
		var p models.PendingRule
		if err := rows.Scan(&p.ID, &p.Text); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// UpdateEmbedding stores the embedding for a rule. Setting the same value
// again is a no-op at the corpus level.
func (s *SQLiteStore) UpdateEmbedding(ctx context.Context, ruleID int64, embedding []float32) error {
	encoded, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE rules SET embedding = ?, updated_at = ? WHERE id = ?`,
		string(encoded), time.Now(), ruleID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("rule not found: %d", ruleID)
	}
	return nil
}

// SimilaritySearch ranks all embedded rules by cosine distance to
// queryVector and returns the closest limit rows, ties broken by rule id.
// Rules whose game no longer resolves keep a nil GameName.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, queryVector []float32, limit int) ([]models.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.rule, g.name, r.embedding
		 FROM rules r
		 LEFT JOIN games g ON r.game_id = g.id
		 WHERE r.embedding IS NOT NULL
		 ORDER BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var (
			m        models.Match
			gameName sql.NullString
			encoded  string
		)
		if err := rows.Scan(&m.RuleID, &m.Text, &gameName, &encoded); err != nil {
			return nil, err
		}
		var embedding []float32
		if err := json.Unmarshal([]byte(encoded), &embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for rule %d: %w", m.RuleID, err)
		}
		distance, err := vector.CosineDistance(queryVector, embedding)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", m.RuleID, err)
		}
		m.Distance = distance
		if gameName.Valid {
			name := gameName.String
			m.GameName = &name
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows arrive id-ascending, so a stable sort on distance preserves the
	// id tie-break.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

// CountGames returns the total number of games.
func (s *SQLiteStore) CountGames(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&count)
	return count, err
}

// CountRules returns the total number of rules.
func (s *SQLiteStore) CountRules(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&count)
	return count, err
}

// CountEmbedded returns the number of rules with a stored embedding.
func (s *SQLiteStore) CountEmbedded(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rules WHERE embedding IS NOT NULL`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
