// Package remote implements domain.RemoteStore on a Supabase (PostgREST)
// table. Whether it is used at all is decided by Config.Enabled: without a
// URL and a well-formed key the application runs local-only.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/rallylog/rallylog/internal/domain"
	"github.com/rallylog/rallylog/internal/infra/observability"
)

// DefaultTable is the remote table holding point records.
const DefaultTable = "point_history"

// Accepted API key prefixes: legacy JWT anon keys and publishable keys.
var keyPrefixes = []string{"eyJ", "sb_publishable_"}

// Config describes the remote store connection.
type Config struct {
	URL   string
	Key   string
	Table string
}

// Enabled reports whether the configuration switches remote sync on.
func (c Config) Enabled() bool {
	if strings.TrimSpace(c.URL) == "" {
		return false
	}
	return ValidKey(c.Key)
}

// ValidKey reports whether key matches a known Supabase key format.
func ValidKey(key string) bool {
	key = strings.TrimSpace(key)
	for _, p := range keyPrefixes {
		if strings.HasPrefix(key, p) && len(key) > len(p) {
			return true
		}
	}
	return false
}

// ─── Row Mapping ────────────────────────────────────────────────────────────

// pointRow is the remote column layout.
type pointRow struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	StrokeTokens []string  `json:"stroke_tokens"`
	Outcome      string    `json:"outcome"`
	ServeType    *string   `json:"serve_type"`
	ReceiveType  *string   `json:"receive_type"`
	RallyTypes   []string  `json:"rally_types"`
	GameNumber   *int      `json:"game_number"`
}

func toRow(rec domain.PointRecord) pointRow {
	tokens := rec.StrokeTokens
	if tokens == nil {
		tokens = []string{}
	}
	rally := rec.RallyTypes
	if rally == nil {
		rally = []string{}
	}
	return pointRow{
		ID:           rec.ID,
		Timestamp:    rec.Timestamp.UTC(),
		StrokeTokens: tokens,
		Outcome:      string(rec.Outcome),
		ServeType:    rec.ServeType,
		ReceiveType:  rec.ReceiveType,
		RallyTypes:   rally,
		GameNumber:   rec.GameNumber,
	}
}

func (r pointRow) toRecord() domain.PointRecord {
	rec := domain.PointRecord{
		ID:           r.ID,
		Timestamp:    r.Timestamp,
		StrokeTokens: r.StrokeTokens,
		Outcome:      domain.Outcome(r.Outcome),
		ServeType:    r.ServeType,
		ReceiveType:  r.ReceiveType,
		GameNumber:   r.GameNumber,
	}
	if len(r.RallyTypes) > 0 {
		rec.RallyTypes = r.RallyTypes
	}
	if rec.StrokeTokens == nil {
		rec.StrokeTokens = []string{}
	}
	return rec
}

// decodeRows decodes a PostgREST response row by row, skipping rows that do
// not decode or carry no id.
func decodeRows(body []byte) ([]domain.PointRecord, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, 0, fmt.Errorf("decode remote points: %w", err)
	}
	recs := make([]domain.PointRecord, 0, len(raw))
	dropped := 0
	for _, item := range raw {
		var row pointRow
		if err := json.Unmarshal(item, &row); err != nil || row.ID == "" {
			dropped++
			continue
		}
		recs = append(recs, row.toRecord())
	}
	return recs, dropped, nil
}

// ─── Supabase Store ─────────────────────────────────────────────────────────

// SupabaseStore is a domain.RemoteStore over a Supabase table.
type SupabaseStore struct {
	client *supabase.Client
	table  string
	log    logrus.FieldLogger
}

// NewSupabaseStore connects to the configured project. It fails with
// domain.ErrRemoteDisabled when cfg does not enable remote sync.
func NewSupabaseStore(cfg Config, log logrus.FieldLogger) (*SupabaseStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if !cfg.Enabled() {
		return nil, domain.ErrRemoteDisabled
	}
	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.Key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	return &SupabaseStore{
		client: client,
		table:  table,
		log:    log.WithField("component", "remote"),
	}, nil
}

// Insert upserts rec by id so replays stay idempotent.
func (s *SupabaseStore) Insert(ctx context.Context, rec domain.PointRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From(s.table).
		Insert(toRow(rec), true, "id", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert point %s: %w", rec.ID, err)
	}
	return nil
}

// SelectAll returns every remote record ordered by timestamp, newest first.
func (s *SupabaseStore) SelectAll(ctx context.Context) ([]domain.PointRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, _, err := s.client.From(s.table).
		Select("*", "", false).
		Order("timestamp", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("select points: %w", err)
	}
	return s.decode(body)
}

// decode turns a select response into records. Dropped rows are counted and
// logged; the rest of the snapshot is still returned.
func (s *SupabaseStore) decode(body []byte) ([]domain.PointRecord, error) {
	recs, dropped, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		observability.RemoteDecodeDrops.Add(float64(dropped))
		s.log.WithFields(logrus.Fields{
			"table":   s.table,
			"dropped": dropped,
			"kept":    len(recs),
		}).Warn("dropping malformed remote point rows")
	}
	return recs, nil
}

// DeleteByID removes one remote record.
func (s *SupabaseStore) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From(s.table).
		Delete("minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every remote record. PostgREST refuses unfiltered
// deletes, so the filter matches every non-empty id.
func (s *SupabaseStore) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.client.From(s.table).
		Delete("minimal", "").
		Neq("id", "").
		Execute()
	if err != nil {
		return fmt.Errorf("delete all points: %w", err)
	}
	return nil
}
