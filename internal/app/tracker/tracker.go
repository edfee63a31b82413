// Package tracker is the scoring application service: it logs points into
// the current game, undoes them, manages game and match boundaries and
// derives the live status the UI renders.
//
// Every point is written twice: to the match history (games and their
// points) and to the point log, which is what syncs with the remote store.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rallylog/rallylog/internal/domain"
	"github.com/rallylog/rallylog/internal/infra/observability"
)

// PointLog is the synced point log (see syncstore.Engine).
type PointLog interface {
	Save(rec domain.PointRecord) error
	LoadAll() []domain.PointRecord
	Remove(id string) error
	Clear() error
	Reconcile(ctx context.Context) ([]domain.PointRecord, error)
	Backfill(ctx context.Context) (int, error)
	RemoteEnabled() bool
}

// Config controls tracker behavior.
type Config struct {
	Credits domain.CreditTable // Outcome credit policy (default: domain.CurrentCredits)
	Now     func() time.Time   // Clock (default: time.Now)
}

// DefaultConfig returns tracker defaults.
func DefaultConfig() Config {
	return Config{
		Credits: domain.CurrentCredits,
		Now:     time.Now,
	}
}

// Tracker serialises every scoring operation behind one mutex; it is the
// single logical writer of both stores.
type Tracker struct {
	mu      sync.Mutex
	points  PointLog
	matches domain.MatchStore
	credits domain.CreditTable
	now     func() time.Time
	log     logrus.FieldLogger

	sidesOverride bool
}

// New creates a tracker.
func New(points PointLog, matches domain.MatchStore, cfg Config, log logrus.FieldLogger) *Tracker {
	if cfg.Credits == nil {
		cfg.Credits = domain.CurrentCredits
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracker{
		points:  points,
		matches: matches,
		credits: cfg.Credits,
		now:     cfg.Now,
		log:     log.WithField("component", "tracker"),
	}
}

// Credits returns the credit table in use.
func (t *Tracker) Credits() domain.CreditTable { return t.credits }

// ─── Points ─────────────────────────────────────────────────────────────────

// LogPoint records one point in the current game, opening a match and game 1
// first when none is active. A point log failure is logged, not returned:
// the match history already holds the point.
func (t *Tracker) LogPoint(ctx context.Context, in domain.PointInput) (domain.PointRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !in.Outcome.Valid() {
		return domain.PointRecord{}, fmt.Errorf("%q: %w", in.Outcome, domain.ErrInvalidOutcome)
	}

	m, g, err := t.ensureGameLocked()
	if err != nil {
		return domain.PointRecord{}, err
	}

	rec, err := domain.NewPointRecord(in, t.now(), domain.IntPtr(g.GameNumber))
	if err != nil {
		return domain.PointRecord{}, err
	}
	if err := t.matches.InsertPoint(m.ID, g.ID, rec); err != nil {
		return domain.PointRecord{}, fmt.Errorf("store point: %w", err)
	}
	if err := t.points.Save(rec); err != nil {
		t.log.WithError(err).WithField("id", rec.ID).Warn("point log save failed")
	}

	observability.PointsLogged.WithLabelValues(string(rec.Outcome)).Inc()
	t.log.WithFields(logrus.Fields{
		"id":      rec.ID[:12],
		"outcome": rec.Outcome,
		"game":    g.GameNumber,
	}).Debug("point logged")
	return rec, nil
}

// UndoLast removes the most recent point of the current game. When the game
// has no points it falls back to the newest point elsewhere in the active
// match. Returns nil, nil when there is no active match or it has no points,
// so an ended match's history is never touched.
func (t *Tracker) UndoLast(ctx context.Context) (*domain.PointRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.matches.ActiveMatch()
	if errors.Is(err, domain.ErrNoActiveMatch) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec *domain.PointRecord
	if g := m.CurrentGame(); g != nil {
		rec = g.LastPoint()
	}
	if rec == nil {
		rec = m.LastPoint()
	}
	if rec == nil {
		return nil, nil
	}

	if err := t.matches.DeletePoint(rec.ID); err != nil {
		return nil, fmt.Errorf("delete point: %w", err)
	}
	if err := t.points.Remove(rec.ID); err != nil {
		t.log.WithError(err).WithField("id", rec.ID).Warn("point log delete failed")
	}

	observability.PointsUndone.Inc()
	return rec, nil
}

// History returns the point log, newest first. A background refresh from
// the remote may change the next call's result.
func (t *Tracker) History(ctx context.Context, limit int) []domain.PointRecord {
	recs := t.points.LoadAll()
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// ─── Games & Matches ────────────────────────────────────────────────────────

// StartNewGame closes the current game and opens the next one with the
// other side serving first.
func (t *Tracker) StartNewGame(ctx context.Context) (domain.Game, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.matches.ActiveMatch()
	if errors.Is(err, domain.ErrNoActiveMatch) {
		_, g, err := t.ensureGameLocked()
		if err != nil {
			return domain.Game{}, err
		}
		return *g, nil
	}
	if err != nil {
		return domain.Game{}, err
	}

	now := t.now()
	prev := m.CurrentGame()
	if prev != nil {
		if err := t.matches.EndGame(prev.ID, now); err != nil {
			return domain.Game{}, fmt.Errorf("end game %d: %w", prev.GameNumber, err)
		}
	} else {
		prev = m.LastGame()
	}

	number := 1
	if prev != nil {
		number = prev.GameNumber + 1
	}
	g := domain.Game{
		ID:                uuid.NewString(),
		MatchID:           m.ID,
		GameNumber:        number,
		PlayerServedFirst: domain.NextFirstServer(prev),
		StartDate:         now,
	}
	if err := t.matches.InsertGame(g); err != nil {
		return domain.Game{}, err
	}
	t.log.WithFields(logrus.Fields{"match": m.ID, "game": number}).Info("new game started")
	return g, nil
}

// ResetMatch clears the point log (local and remote), deletes the active
// match and opens a fresh one.
func (t *Tracker) ResetMatch(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.points.Clear(); err != nil {
		t.log.WithError(err).Warn("point log clear failed")
	}

	m, err := t.matches.ActiveMatch()
	switch {
	case err == nil:
		if err := t.matches.DeleteMatch(m.ID); err != nil {
			return fmt.Errorf("delete match: %w", err)
		}
	case !errors.Is(err, domain.ErrNoActiveMatch):
		return err
	}

	t.sidesOverride = false
	_, _, err = t.startMatchLocked()
	return err
}

// EndMatch closes the current game and the active match. Nothing completes
// a match except this call.
func (t *Tracker) EndMatch(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.matches.ActiveMatch()
	if err != nil {
		return err
	}
	now := t.now()
	if g := m.CurrentGame(); g != nil {
		if err := t.matches.EndGame(g.ID, now); err != nil {
			return err
		}
	}
	if err := t.matches.EndMatch(m.ID, now); err != nil {
		return err
	}
	t.sidesOverride = false
	t.log.WithField("match", m.ID).Info("match ended")
	return nil
}

// ToggleSides flips the manual side override and returns the new value.
func (t *Tracker) ToggleSides() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sidesOverride = !t.sidesOverride
	return t.sidesOverride
}

// Matches returns every match, newest first.
func (t *Tracker) Matches(ctx context.Context) ([]MatchSummary, error) {
	list, err := t.matches.ListMatches()
	if err != nil {
		return nil, err
	}
	out := make([]MatchSummary, 0, len(list))
	for i := range list {
		out = append(out, t.summarize(&list[i]))
	}
	return out, nil
}

// Match returns one match with its games.
func (t *Tracker) Match(ctx context.Context, id string) (MatchSummary, error) {
	m, err := t.matches.GetMatch(id)
	if err != nil {
		return MatchSummary{}, err
	}
	return t.summarize(m), nil
}

// DeleteMatch removes a match with its games and points, and drops those
// points from the point log.
func (t *Tracker) DeleteMatch(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.matches.GetMatch(id)
	if err != nil {
		return err
	}
	if err := t.matches.DeleteMatch(id); err != nil {
		return err
	}
	for _, rec := range matchPoints(m) {
		if err := t.points.Remove(rec.ID); err != nil {
			t.log.WithError(err).WithField("id", rec.ID).Warn("point log delete failed")
		}
	}
	return nil
}

// ─── Sync ───────────────────────────────────────────────────────────────────

// SyncResult reports an explicit sync.
type SyncResult struct {
	Records int  `json:"records"`
	Pushed  int  `json:"pushed"`
	Remote  bool `json:"remote"`
}

// Sync merges the remote point log into the local one. With push set, local
// records missing remotely are uploaded first.
func (t *Tracker) Sync(ctx context.Context, push bool) (SyncResult, error) {
	res := SyncResult{Remote: t.points.RemoteEnabled()}
	if !res.Remote {
		return res, domain.ErrRemoteDisabled
	}
	if push {
		n, err := t.points.Backfill(ctx)
		res.Pushed = n
		if err != nil {
			return res, err
		}
	}
	recs, err := t.points.Reconcile(ctx)
	res.Records = len(recs)
	return res, err
}

// ─── Internals ──────────────────────────────────────────────────────────────

// ensureGameLocked returns the active match and its current game, creating
// whichever is missing.
func (t *Tracker) ensureGameLocked() (*domain.Match, *domain.Game, error) {
	m, err := t.matches.ActiveMatch()
	if errors.Is(err, domain.ErrNoActiveMatch) {
		return t.startMatchLocked()
	}
	if err != nil {
		return nil, nil, err
	}
	if g := m.CurrentGame(); g != nil {
		return m, g, nil
	}

	prev := m.LastGame()
	number := 1
	if prev != nil {
		number = prev.GameNumber + 1
	}
	g := domain.Game{
		ID:                uuid.NewString(),
		MatchID:           m.ID,
		GameNumber:        number,
		PlayerServedFirst: domain.NextFirstServer(prev),
		StartDate:         t.now(),
	}
	if err := t.matches.InsertGame(g); err != nil {
		return nil, nil, err
	}
	m.Games = append(m.Games, g)
	return m, &m.Games[len(m.Games)-1], nil
}

func (t *Tracker) startMatchLocked() (*domain.Match, *domain.Game, error) {
	now := t.now()
	m := domain.Match{ID: uuid.NewString(), StartDate: now}
	if err := t.matches.InsertMatch(m); err != nil {
		return nil, nil, fmt.Errorf("start match: %w", err)
	}
	g := domain.Game{
		ID:                uuid.NewString(),
		MatchID:           m.ID,
		GameNumber:        1,
		PlayerServedFirst: true,
		StartDate:         now,
	}
	if err := t.matches.InsertGame(g); err != nil {
		return nil, nil, fmt.Errorf("start game: %w", err)
	}
	m.Games = []domain.Game{g}
	t.log.WithField("match", m.ID).Info("match started")
	return &m, &m.Games[0], nil
}

func matchPoints(m *domain.Match) []domain.PointRecord {
	out := append([]domain.PointRecord(nil), m.Points...)
	for i := range m.Games {
		out = append(out, m.Games[i].Points...)
	}
	return out
}
