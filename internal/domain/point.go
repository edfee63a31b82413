// Package domain contains pure scoring types with ZERO infrastructure imports.
// Point records, the credit table, the rules engine, serve rotation and the
// match/game aggregates live here; storage and transport depend on this
// package, never the other way round.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ─── Outcome ────────────────────────────────────────────────────────────────

// Outcome is the single tag that decides who is credited a point.
type Outcome string

const (
	OutcomeMyWinner        Outcome = "myWinner"
	OutcomeOpponentError   Outcome = "opponentError"
	OutcomeMyError         Outcome = "myError"
	OutcomeIMissed         Outcome = "iMissed"
	OutcomeUnlucky         Outcome = "unlucky"
	OutcomeBadServeReceive Outcome = "badServeReceive"
)

// AllOutcomes lists every outcome in display order.
var AllOutcomes = []Outcome{
	OutcomeMyWinner,
	OutcomeOpponentError,
	OutcomeMyError,
	OutcomeIMissed,
	OutcomeUnlucky,
	OutcomeBadServeReceive,
}

// Valid reports whether o is one of the known outcomes.
func (o Outcome) Valid() bool {
	for _, known := range AllOutcomes {
		if o == known {
			return true
		}
	}
	return false
}

// ParseOutcome accepts the wire name of an outcome, case-insensitively.
func ParseOutcome(s string) (Outcome, error) {
	for _, known := range AllOutcomes {
		if strings.EqualFold(string(known), strings.TrimSpace(s)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidOutcome)
}

// ─── Stroke Tokens ──────────────────────────────────────────────────────────

// Stroke token categories. A token is "serve", "receive" or "rally", optionally
// followed by ":<detail>" (e.g. "serve:pendulum").
const (
	TokenServe   = "serve"
	TokenReceive = "receive"
	TokenRally   = "rally"
)

func tokenRank(tok string) int {
	category, _, _ := strings.Cut(tok, ":")
	switch category {
	case TokenServe:
		return 0
	case TokenReceive:
		return 1
	default:
		return 2
	}
}

// OrderStrokeTokens returns a copy with serve tokens first, receive second and
// rally tokens trailing. Order inside each category is preserved.
func OrderStrokeTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	sort.SliceStable(out, func(i, j int) bool {
		return tokenRank(out[i]) < tokenRank(out[j])
	})
	return out
}

// ─── PointRecord ────────────────────────────────────────────────────────────

// PointRecord is one logged rally outcome. Records are never edited, only
// appended or deleted.
type PointRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	StrokeTokens []string  `json:"strokeTokens"`
	Outcome      Outcome   `json:"outcome"`
	ServeType    *string   `json:"serveType,omitempty"`
	ReceiveType  *string   `json:"receiveType,omitempty"`
	RallyTypes   []string  `json:"rallyTypes,omitempty"`
	GameNumber   *int      `json:"gameNumber,omitempty"`
}

// PointID derives the content identifier of a point. Identical inputs always
// yield the same ID, which is what makes append and merge idempotent.
func PointID(ts time.Time, outcome Outcome, tokens []string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(ts.UnixNano(), 10))
	b.WriteByte('|')
	b.WriteString(string(outcome))
	b.WriteByte('|')
	b.WriteString(strings.Join(tokens, ","))
	return SHA256Hex([]byte(b.String()))
}

// PointInput carries what the UI collaborator supplies for a new point.
type PointInput struct {
	Outcome      Outcome  `json:"outcome"`
	StrokeTokens []string `json:"strokeTokens"`
	ServeType    *string  `json:"serveType,omitempty"`
	ReceiveType  *string  `json:"receiveType,omitempty"`
	RallyTypes   []string `json:"rallyTypes,omitempty"`
}

// NewPointRecord builds a record stamped at ts with its content-derived ID.
func NewPointRecord(in PointInput, ts time.Time, gameNumber *int) (PointRecord, error) {
	if !in.Outcome.Valid() {
		return PointRecord{}, fmt.Errorf("%q: %w", in.Outcome, ErrInvalidOutcome)
	}
	tokens := OrderStrokeTokens(in.StrokeTokens)
	rec := PointRecord{
		ID:           PointID(ts, in.Outcome, tokens),
		Timestamp:    ts,
		StrokeTokens: tokens,
		Outcome:      in.Outcome,
		ServeType:    in.ServeType,
		ReceiveType:  in.ReceiveType,
		GameNumber:   gameNumber,
	}
	if len(in.RallyTypes) > 0 {
		rec.RallyTypes = append([]string(nil), in.RallyTypes...)
	}
	return rec, nil
}

// SortByTimestampDesc orders records newest first; equal timestamps fall back
// to ID so the order is deterministic.
func SortByTimestampDesc(recs []PointRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		}
		return recs[i].ID < recs[j].ID
	})
}

// SortByTimestampAsc orders records oldest first, ID as tie-break.
func SortByTimestampAsc(recs []PointRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		}
		return recs[i].ID < recs[j].ID
	})
}

// ─── Utilities ──────────────────────────────────────────────────────────────

// SHA256Hex computes SHA-256 hash and returns hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
