// Package models defines core data structures for games, rules, and query results.
package models

import "time"

// Game is the logical owner of a set of rules, identified by name and version.
// The (Name, Version) pair is unique in the store.
type Game struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Version   string    `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultGameVersion is used when a caller does not supply a version.
const DefaultGameVersion = "1.0"

// PendingRule is a rule awaiting embedding backfill. Stored rules only
// travel as PendingRule (backfill) or Match (retrieval); there is no
// full-row rule type.
type PendingRule struct {
	ID   int64
	Text string
}

// Match is a raw similarity-search row from the store: distance ascending,
// ties broken by ascending rule id. GameName is nil when the owning game
// cannot be resolved.
type Match struct {
	RuleID   int64
	Text     string
	GameName *string
	Distance float64
}
