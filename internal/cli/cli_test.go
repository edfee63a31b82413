package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rallylog/rallylog/internal/app/tracker"
	"github.com/rallylog/rallylog/internal/domain"
)

// run executes the root command against an isolated home directory. Flag
// values persist between runs on the shared command tree, so tests pass
// every flag they depend on explicitly.
func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"RALLY_SUPABASE_URL", "SUPABASE_URL", "RALLY_SUPABASE_KEY", "SUPABASE_KEY", "RALLY_API_PORT"} {
		t.Setenv(k, "")
	}
	t.Setenv("RALLY_LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func statusOf(t *testing.T, home string) tracker.Status {
	t.Helper()
	out, err := run(t, home, "status", "--json")
	if err != nil {
		t.Fatalf("status error: %v", err)
	}
	var st tracker.Status
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	return st
}

func TestCLI_PointAndStatus(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, home, "point", "myWinner", "serve:pendulum", "rally:loop", "--serve-type", "pendulum")
	if err != nil {
		t.Fatalf("point error: %v", err)
	}
	if !strings.Contains(out, "Game 1  1–0") {
		t.Errorf("point output = %q, want scoreboard", out)
	}
	run(t, home, "point", "iMissed", "--serve-type", "")

	st := statusOf(t, home)
	if st.PointsWon != 1 || st.PointsLost != 1 {
		t.Errorf("score = %d-%d, want 1-1", st.PointsWon, st.PointsLost)
	}
	if st.IsPlayerServingNext {
		t.Error("opponent serves after two points")
	}
}

func TestCLI_InvalidOutcome(t *testing.T) {
	_, err := run(t, t.TempDir(), "point", "ace")
	if !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Errorf("err = %v, want ErrInvalidOutcome", err)
	}
}

func TestCLI_Undo(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, home, "undo")
	if err != nil {
		t.Fatalf("undo error: %v", err)
	}
	if !strings.Contains(out, "Nothing to undo") {
		t.Errorf("undo on empty = %q", out)
	}

	run(t, home, "point", "unlucky", "--serve-type", "")
	out, _ = run(t, home, "undo")
	if !strings.Contains(out, "Removed unlucky") {
		t.Errorf("undo output = %q", out)
	}
	if st := statusOf(t, home); st.PointCount != 0 {
		t.Errorf("PointCount = %d, want 0", st.PointCount)
	}
}

func TestCLI_GameNew(t *testing.T) {
	home := t.TempDir()
	run(t, home, "point", "myWinner", "--serve-type", "")

	out, err := run(t, home, "game", "new")
	if err != nil {
		t.Fatalf("game new error: %v", err)
	}
	if !strings.Contains(out, "Game 2 started. First serve: opponent") {
		t.Errorf("game new output = %q", out)
	}
	if st := statusOf(t, home); st.GameNumber != 2 || !st.SidesSwapped {
		t.Errorf("status = game %d swapped=%v, want game 2 swapped", st.GameNumber, st.SidesSwapped)
	}
}

func TestCLI_MatchLifecycle(t *testing.T) {
	home := t.TempDir()
	run(t, home, "point", "myWinner", "--serve-type", "")

	if _, err := run(t, home, "match", "reset", "--yes=false"); err == nil {
		t.Error("reset without --yes should fail")
	}

	if _, err := run(t, home, "match", "end"); err != nil {
		t.Fatalf("match end error: %v", err)
	}
	out, err := run(t, home, "match", "list")
	if err != nil {
		t.Fatalf("match list error: %v", err)
	}
	if !strings.Contains(out, "ended") {
		t.Errorf("match list = %q, want an ended match", out)
	}

	id := strings.Fields(strings.Split(out, "\n")[1])[0]
	out, err = run(t, home, "match", "show", id, "--json=false")
	if err != nil {
		t.Fatalf("match show error: %v", err)
	}
	if !strings.Contains(out, "Match "+id) {
		t.Errorf("match show = %q", out)
	}

	if _, err := run(t, home, "match", "delete", id); err != nil {
		t.Fatalf("match delete error: %v", err)
	}
	if _, err := run(t, home, "match", "show", id, "--json=false"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Errorf("show deleted match err = %v, want ErrMatchNotFound", err)
	}
}

func TestCLI_MatchReset(t *testing.T) {
	home := t.TempDir()
	run(t, home, "point", "myWinner", "--serve-type", "")

	if _, err := run(t, home, "match", "reset", "--yes"); err != nil {
		t.Fatalf("match reset error: %v", err)
	}
	if st := statusOf(t, home); st.PointCount != 0 || st.MatchID == "" {
		t.Errorf("status after reset = %+v", st)
	}
}

func TestCLI_History(t *testing.T) {
	home := t.TempDir()
	run(t, home, "point", "myWinner", "--serve-type", "")
	run(t, home, "point", "myError", "--serve-type", "")

	out, err := run(t, home, "history", "--limit", "1", "--json")
	if err != nil {
		t.Fatalf("history error: %v", err)
	}
	var recs []domain.PointRecord
	if err := json.Unmarshal([]byte(out), &recs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(recs) != 1 || recs[0].Outcome != domain.OutcomeMyError {
		t.Errorf("history = %+v, want newest point only", recs)
	}
}

func TestCLI_SyncWithoutRemote(t *testing.T) {
	_, err := run(t, t.TempDir(), "sync", "--push=false")
	if !errors.Is(err, domain.ErrRemoteDisabled) {
		t.Fatalf("sync err = %v, want ErrRemoteDisabled", err)
	}
	if !strings.Contains(err.Error(), "RALLY_SUPABASE_URL") {
		t.Errorf("sync error should say how to configure the remote: %v", err)
	}
}

func TestCLI_ConfigShow(t *testing.T) {
	out, err := run(t, t.TempDir(), "config", "show")
	if err != nil {
		t.Fatalf("config show error: %v", err)
	}
	for _, want := range []string{"remote sync: false", "[api]", "port = 8787", "[scoring]"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}
