package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// Infrastructure implements these; the application layer depends on them.

// RemoteStore is the remote copy of the point log. Implementations are
// best-effort: callers log failures and carry on with local data.
type RemoteStore interface {
	Insert(ctx context.Context, rec PointRecord) error
	// SelectAll returns every remote record, newest first.
	SelectAll(ctx context.Context) ([]PointRecord, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

// MatchStore persists matches with their games and points.
type MatchStore interface {
	InsertMatch(m Match) error
	GetMatch(id string) (*Match, error)
	ActiveMatch() (*Match, error)
	ListMatches() ([]Match, error)
	EndMatch(id string, at time.Time) error
	DeleteMatch(id string) error

	InsertGame(g Game) error
	EndGame(id string, at time.Time) error

	InsertPoint(matchID, gameID string, rec PointRecord) error
	DeletePoint(id string) error
}
