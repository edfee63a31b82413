package domain

// ─── Rules Engine ───────────────────────────────────────────────────────────
// Pure functions of (playerPoints, opponentPoints). Games go to 11, win by 2,
// with a hard cap at 30 so a deuce sequence cannot run forever.

const (
	PointsToWin = 11
	WinMargin   = 2
	DeuceAt     = 10
	RunawayCap  = 30
)

// Status strings shown to the player.
const (
	StatusGameWon    = "Game Won"
	StatusGameLost   = "Game Lost"
	StatusDeuce      = "Deuce"
	StatusGamePoint  = "Game Point"
	StatusInProgress = "In Progress"
)

func maxMin(a, b int) (int, int) {
	if a >= b {
		return a, b
	}
	return b, a
}

// IsGameComplete reports whether the score ends the game.
func IsGameComplete(player, opponent int) bool {
	hi, lo := maxMin(player, opponent)
	if hi >= RunawayCap {
		return true
	}
	return hi >= PointsToWin && hi-lo >= WinMargin
}

// GameWinner returns nil while the game is open, else whether the player won.
func GameWinner(player, opponent int) *bool {
	if !IsGameComplete(player, opponent) {
		return nil
	}
	won := player > opponent
	return &won
}

// IsDeuce reports a tied score with both sides on 10 or more.
func IsDeuce(player, opponent int) bool {
	return player == opponent && player >= DeuceAt
}

// GameStatus classifies the score. Completion wins over deuce, deuce over
// game point.
func GameStatus(player, opponent int) string {
	if w := GameWinner(player, opponent); w != nil {
		if *w {
			return StatusGameWon
		}
		return StatusGameLost
	}
	if IsDeuce(player, opponent) {
		return StatusDeuce
	}
	hi, lo := maxMin(player, opponent)
	if hi >= PointsToWin-1 && hi-lo >= WinMargin {
		return StatusGamePoint
	}
	return StatusInProgress
}

// IsMatchComplete is always false: a match ends only when the user ends it.
func IsMatchComplete(gamesWon, gamesLost int) bool { return false }

// MatchWinner is always nil for the same reason.
func MatchWinner(gamesWon, gamesLost int) *bool { return nil }
