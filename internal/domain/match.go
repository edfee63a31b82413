package domain

import "time"

// ─── Game ───────────────────────────────────────────────────────────────────

// Game is one game inside a match. Every score-derived property is computed
// from Points on each call.
type Game struct {
	ID                string        `json:"id"`
	MatchID           string        `json:"match_id"`
	GameNumber        int           `json:"game_number"`
	PlayerServedFirst bool          `json:"player_served_first"`
	StartDate         time.Time     `json:"start_date"`
	EndDate           *time.Time    `json:"end_date,omitempty"`
	Points            []PointRecord `json:"points"`
}

// Score returns (pointsWon, pointsLost) under t.
func (g *Game) Score(t CreditTable) (int, int) {
	return t.Tally(g.Points)
}

// PointsWon counts points credited to the player.
func (g *Game) PointsWon(t CreditTable) int {
	won, _ := g.Score(t)
	return won
}

// PointsLost counts points credited to the opponent.
func (g *Game) PointsLost(t CreditTable) int {
	_, lost := g.Score(t)
	return lost
}

// IsComplete applies the rules engine to the current score. Advisory only;
// it never closes the game.
func (g *Game) IsComplete(t CreditTable) bool {
	return IsGameComplete(g.Score(t))
}

// Winner is nil until complete.
func (g *Game) Winner(t CreditTable) *bool {
	return GameWinner(g.Score(t))
}

// IsDeuce reports a 10+ tie.
func (g *Game) IsDeuce(t CreditTable) bool {
	return IsDeuce(g.Score(t))
}

// StatusMessage is the rules-engine status for the current score.
func (g *Game) StatusMessage(t CreditTable) string {
	return GameStatus(g.Score(t))
}

// IsPlayerServingNext derives the next server from the score.
func (g *Game) IsPlayerServingNext(t CreditTable) bool {
	won, lost := g.Score(t)
	return IsPlayerServingNext(won, lost, g.PlayerServedFirst)
}

// IsActive reports whether the game has not been closed.
func (g *Game) IsActive() bool { return g.EndDate == nil }

// LastPoint returns the most recently appended point, or nil.
func (g *Game) LastPoint() *PointRecord {
	if len(g.Points) == 0 {
		return nil
	}
	p := g.Points[len(g.Points)-1]
	return &p
}

// ─── Match ──────────────────────────────────────────────────────────────────

// Match owns its games and, for records logged before games existed, points
// directly. It never completes on its own.
type Match struct {
	ID           string        `json:"id"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      *time.Time    `json:"end_date,omitempty"`
	OpponentName *string       `json:"opponent_name,omitempty"`
	Notes        *string       `json:"notes,omitempty"`
	Games        []Game        `json:"games"`
	Points       []PointRecord `json:"points,omitempty"`
}

// CurrentGame returns the first game without an end date, or nil.
func (m *Match) CurrentGame() *Game {
	for i := range m.Games {
		if m.Games[i].EndDate == nil {
			return &m.Games[i]
		}
	}
	return nil
}

// LastGame returns the highest-numbered game, or nil.
func (m *Match) LastGame() *Game {
	var last *Game
	for i := range m.Games {
		if last == nil || m.Games[i].GameNumber > last.GameNumber {
			last = &m.Games[i]
		}
	}
	return last
}

// LastPoint returns the newest point anywhere in the match, legacy points
// included, or nil when the match has none.
func (m *Match) LastPoint() *PointRecord {
	var last *PointRecord
	pick := func(recs []PointRecord) {
		for i := range recs {
			if last == nil || !recs[i].Timestamp.Before(last.Timestamp) {
				last = &recs[i]
			}
		}
	}
	pick(m.Points)
	for i := range m.Games {
		pick(m.Games[i].Points)
	}
	if last == nil {
		return nil
	}
	p := *last
	return &p
}

// GamesWon counts games the rules engine says the player has won.
func (m *Match) GamesWon(t CreditTable) int {
	n := 0
	for i := range m.Games {
		if w := m.Games[i].Winner(t); w != nil && *w {
			n++
		}
	}
	return n
}

// GamesLost counts games the rules engine says the opponent has won.
func (m *Match) GamesLost(t CreditTable) int {
	n := 0
	for i := range m.Games {
		if w := m.Games[i].Winner(t); w != nil && !*w {
			n++
		}
	}
	return n
}

// PointCount counts every point in the match, legacy points included.
func (m *Match) PointCount() int {
	n := len(m.Points)
	for i := range m.Games {
		n += len(m.Games[i].Points)
	}
	return n
}

// IsComplete is always false; see IsMatchComplete.
func (m *Match) IsComplete(t CreditTable) bool {
	return IsMatchComplete(m.GamesWon(t), m.GamesLost(t))
}

// IsEnded reports whether the user has ended the match.
func (m *Match) IsEnded() bool { return m.EndDate != nil }
