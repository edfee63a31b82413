package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rallylog/rallylog/internal/app/tracker"
	"github.com/rallylog/rallylog/internal/domain"
	"github.com/rallylog/rallylog/internal/infra/pointlog"
	"github.com/rallylog/rallylog/internal/infra/sqlite"
	"github.com/rallylog/rallylog/internal/infra/syncstore"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	local := pointlog.NewFileStore(filepath.Join(t.TempDir(), pointlog.DefaultFileName), log)
	engine := syncstore.New(local, nil, syncstore.DefaultConfig(), log)
	tr := tracker.New(engine, db, tracker.DefaultConfig(), log)

	s := NewServer(tr, log)
	s.SetSyncHub(NewSyncHub())
	return s
}

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// ─── Server Tests ───────────────────────────────────────────────────────────

func TestServer_Health(t *testing.T) {
	h := setupServer(t).Handler()
	w := do(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decode[map[string]string](t, w); resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestServer_LogPointAndStatus(t *testing.T) {
	h := setupServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/points",
		`{"outcome":"MYWINNER","strokeTokens":["rally:loop","serve:short"],"serveType":"short"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	rec := decode[domain.PointRecord](t, w)
	if rec.Outcome != domain.OutcomeMyWinner {
		t.Errorf("outcome = %q, want %q", rec.Outcome, domain.OutcomeMyWinner)
	}
	if rec.StrokeTokens[0] != "serve:short" {
		t.Errorf("tokens = %v, want serve first", rec.StrokeTokens)
	}
	if rec.ServeType == nil || *rec.ServeType != "short" {
		t.Errorf("serveType = %v, want short", rec.ServeType)
	}
	if rec.ReceiveType != nil {
		t.Error("receiveType should be omitted when empty")
	}

	w = do(t, h, http.MethodGet, "/api/status", "")
	st := decode[tracker.Status](t, w)
	if st.PointsWon != 1 || st.PointsLost != 0 || st.GameNumber != 1 {
		t.Errorf("status = %+v, want game 1 at 1-0", st)
	}
	if !st.IsPlayerServingNext {
		t.Error("player should still serve after one point")
	}
}

func TestServer_InvalidOutcome(t *testing.T) {
	h := setupServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/points", `{"outcome":"ace"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decode[map[string]map[string]string](t, w)
	if resp["error"]["type"] != "error" || resp["error"]["message"] == "" {
		t.Errorf("error body = %v", resp)
	}

	w = do(t, h, http.MethodPost, "/api/points", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestServer_Undo(t *testing.T) {
	h := setupServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/points/undo", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("undo on empty: expected 204, got %d", w.Code)
	}

	do(t, h, http.MethodPost, "/api/points", `{"outcome":"myError"}`)
	w = do(t, h, http.MethodPost, "/api/points/undo", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if rec := decode[domain.PointRecord](t, w); rec.Outcome != domain.OutcomeMyError {
		t.Errorf("undone outcome = %q", rec.Outcome)
	}

	w = do(t, h, http.MethodGet, "/api/points", "")
	if resp := decode[map[string]interface{}](t, w); resp["count"] != float64(0) {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestServer_ListPointsLimit(t *testing.T) {
	h := setupServer(t).Handler()
	for i := 0; i < 3; i++ {
		do(t, h, http.MethodPost, "/api/points", `{"outcome":"unlucky"}`)
	}

	w := do(t, h, http.MethodGet, "/api/points?limit=2", "")
	if resp := decode[map[string]interface{}](t, w); resp["count"] != float64(2) {
		t.Errorf("count = %v, want 2", resp["count"])
	}
	w = do(t, h, http.MethodGet, "/api/points?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: expected 400, got %d", w.Code)
	}
}

func TestServer_GamesAndSides(t *testing.T) {
	h := setupServer(t).Handler()
	do(t, h, http.MethodPost, "/api/points", `{"outcome":"myWinner"}`)

	w := do(t, h, http.MethodPost, "/api/games", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if g := decode[domain.Game](t, w); g.GameNumber != 2 || g.PlayerServedFirst {
		t.Errorf("game = %+v, want game 2, opponent first", g)
	}

	w = do(t, h, http.MethodPost, "/api/sides/toggle", "")
	st := decode[tracker.Status](t, w)
	if st.SidesSwapped {
		t.Error("game 2 with override should not be swapped")
	}
}

func TestServer_MatchLifecycle(t *testing.T) {
	h := setupServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/match/end", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("end with no match: expected 409, got %d", w.Code)
	}

	do(t, h, http.MethodPost, "/api/points", `{"outcome":"myWinner"}`)
	w = do(t, h, http.MethodPost, "/api/match/end", "")
	if w.Code != http.StatusOK {
		t.Fatalf("end: expected 200, got %d", w.Code)
	}

	w = do(t, h, http.MethodGet, "/api/matches", "")
	list := decode[struct {
		Matches []tracker.MatchSummary `json:"matches"`
	}](t, w)
	if len(list.Matches) != 1 || list.Matches[0].EndDate == nil {
		t.Fatalf("matches = %+v, want one ended match", list.Matches)
	}
	id := list.Matches[0].ID

	w = do(t, h, http.MethodGet, "/api/matches/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get match: expected 200, got %d", w.Code)
	}
	if m := decode[tracker.MatchSummary](t, w); m.PointCount != 1 {
		t.Errorf("PointCount = %d, want 1", m.PointCount)
	}

	w = do(t, h, http.MethodDelete, "/api/matches/"+id, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/matches/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted match: expected 404, got %d", w.Code)
	}
}

func TestServer_ResetMatch(t *testing.T) {
	h := setupServer(t).Handler()
	do(t, h, http.MethodPost, "/api/points", `{"outcome":"myWinner"}`)

	w := do(t, h, http.MethodPost, "/api/match/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if st := decode[tracker.Status](t, w); st.PointCount != 0 || st.MatchID == "" {
		t.Errorf("status after reset = %+v", st)
	}
}

func TestServer_SyncWithoutRemote(t *testing.T) {
	h := setupServer(t).Handler()
	w := do(t, h, http.MethodPost, "/api/sync?push=true", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := setupServer(t)
	if w := do(t, s.Handler(), http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled: expected 404, got %d", w.Code)
	}

	s.EnableMetrics()
	h := s.Handler()
	do(t, h, http.MethodPost, "/api/points", `{"outcome":"iMissed"}`)
	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("rally_points_logged_total")) {
		t.Error("metrics output missing rally_points_logged_total")
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	h := setupServer(t).Handler()
	w := do(t, h, http.MethodOptions, "/api/points", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

// ─── Sync Hub Tests ─────────────────────────────────────────────────────────

func TestSyncHub_Broadcast(t *testing.T) {
	hub := NewSyncHub()
	ch1, unsub1 := hub.Subscribe()
	defer unsub1()
	ch2, unsub2 := hub.Subscribe()
	defer unsub2()

	hub.Broadcast(syncstore.Event{Op: syncstore.OpInsert, ID: "abc"})

	for i, ch := range []chan []byte{ch1, ch2} {
		select {
		case data := <-ch:
			var ev syncstore.Event
			json.Unmarshal(data, &ev)
			if ev.Op != syncstore.OpInsert || ev.ID != "abc" {
				t.Errorf("client %d got %+v", i+1, ev)
			}
		case <-time.After(time.Second):
			t.Errorf("client %d timeout", i+1)
		}
	}
}

func TestSyncHub_Unsubscribe(t *testing.T) {
	hub := NewSyncHub()

	_, unsub := hub.Subscribe()
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1, got %d", hub.ClientCount())
	}

	unsub()
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 after unsub, got %d", hub.ClientCount())
	}
}

func TestSyncHub_SSE_Endpoint(t *testing.T) {
	hub := NewSyncHub()
	events := make(chan syncstore.Event, 1)
	ctx, cancel := testContext(t)
	defer cancel()
	go hub.Run(ctx, events)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleSyncSSE))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", resp.Header.Get("Content-Type"))
	}

	// The handler subscribes before its first flush, so the client is
	// registered once headers arrive.
	events <- syncstore.Event{Op: syncstore.OpRefresh, Records: 7}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") || !strings.Contains(line, `"records":7`) {
		t.Errorf("SSE line = %q", line)
	}
}
