package domain

// ─── Serve Rotation ─────────────────────────────────────────────────────────
// Serve changes every two points until either side reaches 10, then every
// point. Derived from the score alone; nothing is stored.

// IsPlayerServing reports whether the player serves after total points.
// perPoint selects the every-point cadence.
func IsPlayerServing(total int, playerServedFirst, perPoint bool) bool {
	var initialServes bool
	if perPoint {
		initialServes = total%2 == 0
	} else {
		initialServes = (total/2)%2 == 0
	}
	if playerServedFirst {
		return initialServes
	}
	return !initialServes
}

// PerPointServe reports whether the score is in the every-point phase.
func PerPointServe(player, opponent int) bool {
	hi, _ := maxMin(player, opponent)
	return IsDeuce(player, opponent) || hi >= DeuceAt
}

// IsPlayerServingNext returns who serves the next point at this score.
func IsPlayerServingNext(player, opponent int, playerServedFirst bool) bool {
	return IsPlayerServing(player+opponent, playerServedFirst, PerPointServe(player, opponent))
}

// SidesSwapped reports whether ends are swapped for gameNumber. Even games
// swap; the manual override inverts that.
func SidesSwapped(gameNumber int, manualOverride bool) bool {
	return (gameNumber%2 == 0) != manualOverride
}

// NextFirstServer picks the first server for the game after prev.
func NextFirstServer(prev *Game) bool {
	if prev == nil {
		return true
	}
	return !prev.PlayerServedFirst
}
