package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rallylog/rallylog/internal/domain"
)

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per string.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id            TEXT PRIMARY KEY,
			start_date    TEXT NOT NULL,
			end_date      TEXT,
			opponent_name TEXT,
			notes         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_open ON matches(end_date, start_date)`,

		`CREATE TABLE IF NOT EXISTS games (
			id                  TEXT PRIMARY KEY,
			match_id            TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			game_number         INTEGER NOT NULL,
			player_served_first INTEGER NOT NULL DEFAULT 1,
			start_date          TEXT NOT NULL,
			end_date            TEXT,
			UNIQUE(match_id, game_number)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_match ON games(match_id)`,

		// game_id is NULL for points logged before games existed.
		`CREATE TABLE IF NOT EXISTS points (
			id            TEXT PRIMARY KEY,
			match_id      TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
			game_id       TEXT REFERENCES games(id) ON DELETE CASCADE,
			timestamp     TEXT NOT NULL,
			outcome       TEXT NOT NULL,
			stroke_tokens TEXT NOT NULL DEFAULT '[]',
			serve_type    TEXT,
			receive_type  TEXT,
			rally_types   TEXT,
			game_number   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_points_match ON points(match_id)`,
		`CREATE INDEX IF NOT EXISTS idx_points_game ON points(game_id)`,
	}
}

var _ domain.MatchStore = (*DB)(nil)

// ─── Match Operations ───────────────────────────────────────────────────────

// InsertMatch stores a match row. Games and points are inserted separately.
func (db *DB) InsertMatch(m domain.Match) error {
	_, err := db.db.Exec(`
		INSERT INTO matches (id, start_date, end_date, opponent_name, notes)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, formatTime(m.StartDate), formatTimePtr(m.EndDate), m.OpponentName, m.Notes)
	return err
}

// GetMatch loads a match with its games and points.
func (db *DB) GetMatch(id string) (*domain.Match, error) {
	m, err := scanMatch(db.db.QueryRow(`
		SELECT id, start_date, end_date, opponent_name, notes
		FROM matches WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", id, domain.ErrMatchNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadChildren(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ActiveMatch returns the most recently started match that has not been
// ended, or domain.ErrNoActiveMatch.
func (db *DB) ActiveMatch() (*domain.Match, error) {
	m, err := scanMatch(db.db.QueryRow(`
		SELECT id, start_date, end_date, opponent_name, notes
		FROM matches WHERE end_date IS NULL
		ORDER BY start_date DESC LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoActiveMatch
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadChildren(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMatches returns every match, newest first, fully loaded.
func (db *DB) ListMatches() ([]domain.Match, error) {
	rows, err := db.db.Query(`
		SELECT id, start_date, end_date, opponent_name, notes
		FROM matches ORDER BY start_date DESC
	`)
	if err != nil {
		return nil, err
	}
	var result []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Children are loaded after the cursor is closed; the pool has one conn.
	for i := range result {
		if err := db.loadChildren(&result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// EndMatch sets the match end date. An already ended match keeps its
// original end date and yields domain.ErrMatchEnded.
func (db *DB) EndMatch(id string, at time.Time) error {
	res, err := db.db.Exec(`UPDATE matches SET end_date = ? WHERE id = ? AND end_date IS NULL`, formatTime(at), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM matches WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%s: %w", id, domain.ErrMatchNotFound)
	}
	return fmt.Errorf("%s: %w", id, domain.ErrMatchEnded)
}

// DeleteMatch removes a match; its games and points go with it.
func (db *DB) DeleteMatch(id string) error {
	res, err := db.db.Exec(`DELETE FROM matches WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id, domain.ErrMatchNotFound)
}

// ─── Game Operations ────────────────────────────────────────────────────────

// InsertGame stores a game row under its match.
func (db *DB) InsertGame(g domain.Game) error {
	_, err := db.db.Exec(`
		INSERT INTO games (id, match_id, game_number, player_served_first, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, g.ID, g.MatchID, g.GameNumber, boolToInt(g.PlayerServedFirst), formatTime(g.StartDate), formatTimePtr(g.EndDate))
	if err != nil {
		return fmt.Errorf("insert game %d: %w", g.GameNumber, err)
	}
	return nil
}

// EndGame sets the game end date.
func (db *DB) EndGame(id string, at time.Time) error {
	res, err := db.db.Exec(`UPDATE games SET end_date = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return err
	}
	return requireRow(res, "game "+id, domain.ErrMatchNotFound)
}

// ─── Point Operations ───────────────────────────────────────────────────────

// InsertPoint attaches rec to a match and, when gameID is non-empty, a game.
// Inserting an id that already exists is a no-op.
func (db *DB) InsertPoint(matchID, gameID string, rec domain.PointRecord) error {
	tokens, err := json.Marshal(nonNil(rec.StrokeTokens))
	if err != nil {
		return err
	}
	var rally *string
	if len(rec.RallyTypes) > 0 {
		b, err := json.Marshal(rec.RallyTypes)
		if err != nil {
			return err
		}
		s := string(b)
		rally = &s
	}
	var game *string
	if gameID != "" {
		game = &gameID
	}

	_, err = db.db.Exec(`
		INSERT OR IGNORE INTO points
			(id, match_id, game_id, timestamp, outcome, stroke_tokens, serve_type, receive_type, rally_types, game_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, matchID, game, formatTime(rec.Timestamp), string(rec.Outcome), string(tokens),
		rec.ServeType, rec.ReceiveType, rally, rec.GameNumber)
	return err
}

// DeletePoint removes a point. Absent ids are not an error.
func (db *DB) DeletePoint(id string) error {
	_, err := db.db.Exec(`DELETE FROM points WHERE id = ?`, id)
	return err
}

// ─── Loading ────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*domain.Match, error) {
	var (
		m               domain.Match
		start           string
		end, opp, notes sql.NullString
	)
	if err := row.Scan(&m.ID, &start, &end, &opp, &notes); err != nil {
		return nil, err
	}
	m.StartDate = parseTime(start)
	m.EndDate = parseNullTime(end)
	m.OpponentName = nullString(opp)
	m.Notes = nullString(notes)
	return &m, nil
}

// loadChildren fills m.Games (by game number) and m.Points (legacy points
// without a game). Points are ordered oldest first.
func (db *DB) loadChildren(m *domain.Match) error {
	rows, err := db.db.Query(`
		SELECT id, game_number, player_served_first, start_date, end_date
		FROM games WHERE match_id = ? ORDER BY game_number
	`, m.ID)
	if err != nil {
		return err
	}
	m.Games = nil
	for rows.Next() {
		var (
			g      domain.Game
			served int
			start  string
			end    sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.GameNumber, &served, &start, &end); err != nil {
			rows.Close()
			return err
		}
		g.MatchID = m.ID
		g.PlayerServedFirst = served == 1
		g.StartDate = parseTime(start)
		g.EndDate = parseNullTime(end)
		m.Games = append(m.Games, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	byGame := make(map[string]int, len(m.Games))
	for i := range m.Games {
		byGame[m.Games[i].ID] = i
	}

	rows, err = db.db.Query(`
		SELECT id, game_id, timestamp, outcome, stroke_tokens, serve_type, receive_type, rally_types, game_number
		FROM points WHERE match_id = ? ORDER BY timestamp, rowid
	`, m.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	m.Points = nil
	for rows.Next() {
		var (
			rec                 domain.PointRecord
			gameID              sql.NullString
			ts, outcome, tokens string
			serve, recv, rally  sql.NullString
			gameNumber          sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &gameID, &ts, &outcome, &tokens, &serve, &recv, &rally, &gameNumber); err != nil {
			return err
		}
		rec.Timestamp = parseTime(ts)
		rec.Outcome = domain.Outcome(outcome)
		if err := json.Unmarshal([]byte(tokens), &rec.StrokeTokens); err != nil {
			return fmt.Errorf("point %s stroke tokens: %w", rec.ID, err)
		}
		rec.ServeType = nullString(serve)
		rec.ReceiveType = nullString(recv)
		if rally.Valid {
			if err := json.Unmarshal([]byte(rally.String), &rec.RallyTypes); err != nil {
				return fmt.Errorf("point %s rally types: %w", rec.ID, err)
			}
		}
		if gameNumber.Valid {
			rec.GameNumber = domain.IntPtr(int(gameNumber.Int64))
		}

		if i, ok := byGame[gameID.String]; gameID.Valid && ok {
			m.Games[i].Points = append(m.Games[i].Points, rec)
		} else {
			m.Points = append(m.Points, rec)
		}
	}
	return rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// timeLayout is fixed width so text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func requireRow(res sql.Result, id string, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, notFound)
	}
	return nil
}
