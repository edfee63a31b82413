package domain

import (
	"fmt"
	"strings"
)

// ─── Credit Table ───────────────────────────────────────────────────────────
// Every outcome maps to exactly one credit. The mapping lives here and only
// here; aggregates never inspect outcome strings themselves.

// Credit says which side a point is awarded to.
type Credit int

const (
	CreditNeither Credit = iota
	CreditPlayer
	CreditOpponent
)

// String returns a human-readable credit.
func (c Credit) String() string {
	switch c {
	case CreditPlayer:
		return "player"
	case CreditOpponent:
		return "opponent"
	default:
		return "neither"
	}
}

// CreditTable maps outcomes to credits. Unknown outcomes credit neither side.
type CreditTable map[Outcome]Credit

// CreditFor returns the credit for o.
func (t CreditTable) CreditFor(o Outcome) Credit {
	if c, ok := t[o]; ok {
		return c
	}
	return CreditNeither
}

// CurrentCredits awards badServeReceive to the opponent.
var CurrentCredits = CreditTable{
	OutcomeMyWinner:        CreditPlayer,
	OutcomeOpponentError:   CreditPlayer,
	OutcomeMyError:         CreditOpponent,
	OutcomeIMissed:         CreditOpponent,
	OutcomeUnlucky:         CreditOpponent,
	OutcomeBadServeReceive: CreditOpponent,
}

// LegacyCredits leaves badServeReceive out of both tallies, as the older
// scoring model did.
var LegacyCredits = CreditTable{
	OutcomeMyWinner:        CreditPlayer,
	OutcomeOpponentError:   CreditPlayer,
	OutcomeMyError:         CreditOpponent,
	OutcomeIMissed:         CreditOpponent,
	OutcomeUnlucky:         CreditOpponent,
	OutcomeBadServeReceive: CreditNeither,
}

// Policy names accepted by CreditTableFor (config scoring.bad_serve_receive).
const (
	BadServeReceiveOpponent = "opponent"
	BadServeReceiveNeither  = "neither"
)

// CreditTableFor resolves the configured badServeReceive policy.
func CreditTableFor(policy string) (CreditTable, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", BadServeReceiveOpponent:
		return CurrentCredits, nil
	case BadServeReceiveNeither:
		return LegacyCredits, nil
	default:
		return nil, fmt.Errorf("unknown bad_serve_receive policy %q (want %q or %q)",
			policy, BadServeReceiveOpponent, BadServeReceiveNeither)
	}
}

// Tally counts player and opponent points for recs under t.
func (t CreditTable) Tally(recs []PointRecord) (won, lost int) {
	for _, r := range recs {
		switch t.CreditFor(r.Outcome) {
		case CreditPlayer:
			won++
		case CreditOpponent:
			lost++
		}
	}
	return won, lost
}
