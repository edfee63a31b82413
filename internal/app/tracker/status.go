package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/rallylog/rallylog/internal/domain"
)

// Status is the derived scoreboard for the active game. Everything in it is
// recomputed from stored points on each call.
type Status struct {
	MatchID             string              `json:"matchId,omitempty"`
	GameNumber          int                 `json:"gameNumber"`
	PointsWon           int                 `json:"pointsWon"`
	PointsLost          int                 `json:"pointsLost"`
	IsComplete          bool                `json:"isComplete"`
	Winner              *bool               `json:"winner,omitempty"`
	IsDeuce             bool                `json:"isDeuce"`
	StatusMessage       string              `json:"statusMessage"`
	PlayerServedFirst   bool                `json:"playerServedFirst"`
	IsPlayerServingNext bool                `json:"isPlayerServingNext"`
	SidesSwapped        bool                `json:"sidesSwapped"`
	GamesWon            int                 `json:"gamesWon"`
	GamesLost           int                 `json:"gamesLost"`
	PointCount          int                 `json:"pointCount"`
	MatchComplete       bool                `json:"matchComplete"`
	LastPoint           *domain.PointRecord `json:"lastPoint,omitempty"`
}

// Status returns the scoreboard. With no active match it describes the
// empty game 1 a first point would open.
func (t *Tracker) Status(ctx context.Context) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.matches.ActiveMatch()
	if errors.Is(err, domain.ErrNoActiveMatch) {
		return Status{
			GameNumber:          1,
			StatusMessage:       domain.GameStatus(0, 0),
			PlayerServedFirst:   true,
			IsPlayerServingNext: true,
			SidesSwapped:        domain.SidesSwapped(1, t.sidesOverride),
		}, nil
	}
	if err != nil {
		return Status{}, err
	}

	g := m.CurrentGame()
	if g == nil {
		g = m.LastGame()
	}
	st := Status{
		MatchID:       m.ID,
		GamesWon:      m.GamesWon(t.credits),
		GamesLost:     m.GamesLost(t.credits),
		PointCount:    m.PointCount(),
		MatchComplete: m.IsComplete(t.credits),
	}
	if g == nil {
		st.GameNumber = 1
		st.StatusMessage = domain.GameStatus(0, 0)
		st.PlayerServedFirst = true
		st.IsPlayerServingNext = true
		st.SidesSwapped = domain.SidesSwapped(1, t.sidesOverride)
		return st, nil
	}

	st.GameNumber = g.GameNumber
	st.PointsWon, st.PointsLost = g.Score(t.credits)
	st.IsComplete = g.IsComplete(t.credits)
	st.Winner = g.Winner(t.credits)
	st.IsDeuce = g.IsDeuce(t.credits)
	st.StatusMessage = g.StatusMessage(t.credits)
	st.PlayerServedFirst = g.PlayerServedFirst
	st.IsPlayerServingNext = g.IsPlayerServingNext(t.credits)
	st.SidesSwapped = domain.SidesSwapped(g.GameNumber, t.sidesOverride)
	st.LastPoint = g.LastPoint()
	return st, nil
}

// GameSummary is one game with its derived score.
type GameSummary struct {
	domain.Game
	PointsWon     int    `json:"points_won"`
	PointsLost    int    `json:"points_lost"`
	Winner        *bool  `json:"winner,omitempty"`
	StatusMessage string `json:"status_message"`
}

// MatchSummary is one match with derived counts.
type MatchSummary struct {
	ID           string        `json:"id"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      *time.Time    `json:"end_date,omitempty"`
	OpponentName *string       `json:"opponent_name,omitempty"`
	Notes        *string       `json:"notes,omitempty"`
	GamesWon     int           `json:"games_won"`
	GamesLost    int           `json:"games_lost"`
	PointCount   int           `json:"point_count"`
	Games        []GameSummary `json:"games"`
}

func (t *Tracker) summarize(m *domain.Match) MatchSummary {
	s := MatchSummary{
		ID:           m.ID,
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		OpponentName: m.OpponentName,
		Notes:        m.Notes,
		GamesWon:     m.GamesWon(t.credits),
		GamesLost:    m.GamesLost(t.credits),
		PointCount:   m.PointCount(),
		Games:        make([]GameSummary, 0, len(m.Games)),
	}
	for i := range m.Games {
		g := &m.Games[i]
		won, lost := g.Score(t.credits)
		s.Games = append(s.Games, GameSummary{
			Game:          *g,
			PointsWon:     won,
			PointsLost:    lost,
			Winner:        g.Winner(t.credits),
			StatusMessage: g.StatusMessage(t.credits),
		})
	}
	return s
}
