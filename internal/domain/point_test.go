package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// ─── PointRecord Tests ──────────────────────────────────────────────────────

func TestPointID_Deterministic(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	a := PointID(ts, OutcomeMyWinner, []string{"serve", "rally:loop"})
	b := PointID(ts, OutcomeMyWinner, []string{"serve", "rally:loop"})
	if a != b {
		t.Errorf("PointID not stable: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len(PointID) = %d, want 64", len(a))
	}

	variants := []string{
		PointID(ts.Add(time.Nanosecond), OutcomeMyWinner, []string{"serve", "rally:loop"}),
		PointID(ts, OutcomeIMissed, []string{"serve", "rally:loop"}),
		PointID(ts, OutcomeMyWinner, []string{"serve"}),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d produced the same ID", i)
		}
	}
}

func TestNewPointRecord(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec, err := NewPointRecord(PointInput{
		Outcome:      OutcomeOpponentError,
		StrokeTokens: []string{"rally:flick", "receive:push", "serve:pendulum"},
		ServeType:    StringPtr("pendulum"),
		RallyTypes:   []string{"flick"},
	}, ts, IntPtr(2))
	if err != nil {
		t.Fatalf("NewPointRecord() error: %v", err)
	}

	wantTokens := []string{"serve:pendulum", "receive:push", "rally:flick"}
	for i, tok := range wantTokens {
		if rec.StrokeTokens[i] != tok {
			t.Errorf("StrokeTokens[%d] = %q, want %q", i, rec.StrokeTokens[i], tok)
		}
	}
	if rec.ID != PointID(ts, OutcomeOpponentError, wantTokens) {
		t.Error("ID should be derived from the ordered tokens")
	}
	if rec.GameNumber == nil || *rec.GameNumber != 2 {
		t.Errorf("GameNumber = %v, want 2", rec.GameNumber)
	}
}

func TestNewPointRecord_InvalidOutcome(t *testing.T) {
	_, err := NewPointRecord(PointInput{Outcome: "ace"}, time.Now(), nil)
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("err = %v, want ErrInvalidOutcome", err)
	}
}

func TestParseOutcome(t *testing.T) {
	got, err := ParseOutcome("IMISSED")
	if err != nil {
		t.Fatalf("ParseOutcome() error: %v", err)
	}
	if got != OutcomeIMissed {
		t.Errorf("ParseOutcome = %q, want %q", got, OutcomeIMissed)
	}
	if _, err := ParseOutcome("let"); !errors.Is(err, ErrInvalidOutcome) {
		t.Errorf("ParseOutcome(let) err = %v, want ErrInvalidOutcome", err)
	}
}

func TestOrderStrokeTokens_Stable(t *testing.T) {
	in := []string{"rally:a", "serve", "rally:b", "receive", "rally:c"}
	got := OrderStrokeTokens(in)
	want := []string{"serve", "receive", "rally:a", "rally:b", "rally:c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("OrderStrokeTokens = %v, want %v", got, want)
		}
	}
	if in[0] != "rally:a" {
		t.Error("input slice must not be reordered")
	}
}

func TestPointRecord_LegacyJSON(t *testing.T) {
	// Written before serveType/receiveType/rallyTypes/gameNumber existed.
	raw := `[{"id":"abc","timestamp":"2024-05-01T10:00:00Z","strokeTokens":["serve"],"outcome":"myWinner"}]`

	var recs []PointRecord
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len = %d, want 1", len(recs))
	}
	r := recs[0]
	if r.ServeType != nil || r.ReceiveType != nil || r.GameNumber != nil {
		t.Error("absent optional pointers should decode as nil")
	}
	if len(r.RallyTypes) != 0 {
		t.Errorf("RallyTypes = %v, want empty", r.RallyTypes)
	}

	out, err := json.Marshal(recs)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var again []PointRecord
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("re-Unmarshal() error: %v", err)
	}
	if again[0].ID != "abc" || !again[0].Timestamp.Equal(r.Timestamp) || again[0].Outcome != OutcomeMyWinner {
		t.Errorf("round trip changed record: %+v", again[0])
	}
	if again[0].GameNumber != nil {
		t.Error("GameNumber should stay absent after round trip")
	}
}

func TestSortByTimestampDesc(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []PointRecord{
		{ID: "b", Timestamp: base},
		{ID: "c", Timestamp: base.Add(time.Second)},
		{ID: "a", Timestamp: base},
	}
	SortByTimestampDesc(recs)
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if recs[i].ID != id {
			t.Errorf("recs[%d].ID = %q, want %q", i, recs[i].ID, id)
		}
	}
}

// ─── Credit Table Tests ─────────────────────────────────────────────────────

func TestCreditTables(t *testing.T) {
	tests := []struct {
		outcome Outcome
		current Credit
		legacy  Credit
	}{
		{OutcomeMyWinner, CreditPlayer, CreditPlayer},
		{OutcomeOpponentError, CreditPlayer, CreditPlayer},
		{OutcomeMyError, CreditOpponent, CreditOpponent},
		{OutcomeIMissed, CreditOpponent, CreditOpponent},
		{OutcomeUnlucky, CreditOpponent, CreditOpponent},
		{OutcomeBadServeReceive, CreditOpponent, CreditNeither},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			if got := CurrentCredits.CreditFor(tt.outcome); got != tt.current {
				t.Errorf("CurrentCredits = %s, want %s", got, tt.current)
			}
			if got := LegacyCredits.CreditFor(tt.outcome); got != tt.legacy {
				t.Errorf("LegacyCredits = %s, want %s", got, tt.legacy)
			}
		})
	}
}

func TestCreditTableFor(t *testing.T) {
	tbl, err := CreditTableFor("")
	if err != nil || tbl.CreditFor(OutcomeBadServeReceive) != CreditOpponent {
		t.Errorf("default policy should credit opponent, got %v (err %v)", tbl, err)
	}
	tbl, err = CreditTableFor("Neither")
	if err != nil || tbl.CreditFor(OutcomeBadServeReceive) != CreditNeither {
		t.Errorf("neither policy mismatch: %v (err %v)", tbl, err)
	}
	if _, err := CreditTableFor("player"); err == nil {
		t.Error("unknown policy should fail")
	}
}
