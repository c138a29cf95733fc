// Postgres/pgvector implementation of CorpusStore. Ranking is pushed down to
// the database with the cosine-distance operator.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/boardgamelab/rulesearch/internal/models"
)

// PostgresConfig holds connection parameters for the Postgres store.
type PostgresConfig struct {
	Host     string
	Database string
	User     string
	Password string
	Port     int
	// Dimensions of stored embeddings, used when creating the rules table.
	Dimensions int
}

// PostgresStore implements CorpusStore on Postgres with the pgvector extension.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres, registers the vector type, and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx, cfg.Dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		dimensions = 384
	}
	schema := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS games (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '1.0',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE(name, version)
	);

	CREATE TABLE IF NOT EXISTS rules (
		id BIGSERIAL PRIMARY KEY,
		rule TEXT NOT NULL,
		game_id BIGINT REFERENCES games(id),
		embedding vector(%d),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_rules_game_id ON rules(game_id);
	`, dimensions)
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// FindGame returns the game with the given name and version, or ErrGameNotFound.
func (s *PostgresStore) FindGame(ctx context.Context, name, version string) (*models.Game, error) {
	var game models.Game
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, version, created_at, updated_at FROM games
		 WHERE name = $1 AND version = $2`, name, version,
	).Scan(&game.ID, &game.Name, &game.Version, &game.CreatedAt, &game.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s v%s", ErrGameNotFound, name, version)
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// CreateGame inserts a game. A unique-violation on (name, version) surfaces
// as ErrGameExists so callers can re-resolve.
func (s *PostgresStore) CreateGame(ctx context.Context, name, version string) (*models.Game, error) {
	var game models.Game
	err := s.pool.QueryRow(ctx,
		`INSERT INTO games (name, version) VALUES ($1, $2)
		 RETURNING id, name, version, created_at, updated_at`,
		name, version,
	).Scan(&game.ID, &game.Name, &game.Version, &game.CreatedAt, &game.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s v%s", ErrGameExists, name, version)
		}
		return nil, err
	}
	return &game, nil
}

// InsertRules batch-inserts rule texts for a game in one transaction. A blank
// text fails the whole batch, same as the SQLite store.
func (s *PostgresStore) InsertRules(ctx context.Context, gameID int64, texts []string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}
	if err := validateRuleTexts(texts); err != nil {
		return 0, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	for _, text := range texts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rules (rule, game_id) VALUES ($1, $2)`, text, gameID,
		); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(texts), nil
}

// RulesMissingEmbedding returns (id, text) of rules with NULL embedding,
// ordered by id.
func (s *PostgresStore) RulesMissingEmbedding(ctx context.Context) ([]models.PendingRule, error) {
	rows, err := s.pool.Query(ctx,
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

// UpdateEmbedding stores the embedding for a rule.
func (s *PostgresStore) UpdateEmbedding(ctx context.Context, ruleID int64, embedding []float32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rules SET embedding = $1, updated_at = now() WHERE id = $2`,
		pgvector.NewVector(embedding), ruleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule not found: %d", ruleID)
	}
	return nil
}

// SimilaritySearch returns the limit closest embedded rules by cosine
// distance, ties broken by ascending rule id.
func (s *PostgresStore) SimilaritySearch(ctx context.Context, queryVector []float32, limit int) ([]models.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.rule, g.name, r.embedding <=> $1 AS distance
		 FROM rules r
		 LEFT JOIN games g ON r.game_id = g.id
		 WHERE r.embedding IS NOT NULL
		 ORDER BY distance, r.id
		 LIMIT $2`,
		pgvector.NewVector(queryVector), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.RuleID, &m.Text, &m.GameName, &m.Distance); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountGames returns the total number of games.
func (s *PostgresStore) CountGames(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM games`).Scan(&count)
	return count, err
}

// CountRules returns the total number of rules.
func (s *PostgresStore) CountRules(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rules`).Scan(&count)
	return count, err
}

// CountEmbedded returns the number of rules with a stored embedding.
func (s *PostgresStore) CountEmbedded(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM rules WHERE embedding IS NOT NULL`).Scan(&count)
	return count, err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
