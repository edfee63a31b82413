// Package pointlog is the local, offline-first point log: one JSON array
// file holding every point of the active match. The file is always read and
// written whole. I/O failures are logged and degrade to an empty read so a
// broken disk never takes the scorer down with it.
package pointlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rallylog/rallylog/internal/domain"
	"github.com/rallylog/rallylog/internal/infra/observability"
)

// DefaultFileName is the log file name inside the storage directory.
const DefaultFileName = "point_history.json"

// FileStore is an append-only point log backed by a single JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
	log  logrus.FieldLogger
}

// NewFileStore creates a store at path. The parent directory is created on
// first write.
func NewFileStore(path string, log logrus.FieldLogger) *FileStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileStore{
		path: path,
		log:  log.WithField("component", "pointlog"),
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// LoadAll returns every record in file order. A missing, unreadable or
// corrupt file yields an empty slice.
func (s *FileStore) LoadAll() []domain.PointRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Append adds rec unless a record with the same ID is already stored.
func (s *FileStore) Append(rec domain.PointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.readLocked()
	for _, r := range recs {
		if r.ID == rec.ID {
			return nil
		}
	}
	return s.writeLocked(append(recs, rec))
}

// DeleteByID removes the record with id. Absent IDs are not an error.
func (s *FileStore) DeleteByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.readLocked()
	for i, r := range recs {
		if r.ID == id {
			return s.writeLocked(append(recs[:i], recs[i+1:]...))
		}
	}
	return nil
}

// DeleteLast removes the most recently appended record and returns it.
// An empty log returns nil, nil.
func (s *FileStore) DeleteLast() (*domain.PointRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.readLocked()
	if len(recs) == 0 {
		return nil, nil
	}
	last := recs[len(recs)-1]
	if err := s.writeLocked(recs[:len(recs)-1]); err != nil {
		return nil, err
	}
	return &last, nil
}

// ReplaceAll overwrites the log with recs, in the given order.
func (s *FileStore) ReplaceAll(recs []domain.PointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(recs)
}

// Update rewrites the log with fn applied to its current contents. The read
// and the write happen under one lock, so appends cannot slip in between.
func (s *FileStore) Update(fn func([]domain.PointRecord) []domain.PointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(fn(s.readLocked()))
}

// Clear removes every record.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		observability.PointLogIOErrors.WithLabelValues("clear").Inc()
		s.log.WithError(err).Warn("clear point log failed")
		return fmt.Errorf("clear point log: %w", err)
	}
	return nil
}

// ─── File I/O ───────────────────────────────────────────────────────────────

func (s *FileStore) readLocked() []domain.PointRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			observability.PointLogIOErrors.WithLabelValues("read").Inc()
			s.log.WithError(err).Warn("read point log failed, treating as empty")
		}
		return []domain.PointRecord{}
	}
	return decodeRecords(data, s.log)
}

// decodeRecords decodes element by element so one malformed record cannot
// fail the whole load.
func decodeRecords(data []byte, log logrus.FieldLogger) []domain.PointRecord {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		observability.PointLogIOErrors.WithLabelValues("decode").Inc()
		log.WithError(err).Warn("point log is not a JSON array, treating as empty")
		return []domain.PointRecord{}
	}

	recs := make([]domain.PointRecord, 0, len(raw))
	for i, item := range raw {
		var rec domain.PointRecord
		if err := json.Unmarshal(item, &rec); err != nil || rec.ID == "" {
			observability.PointLogDecodeDrops.Inc()
			log.WithField("index", i).WithError(err).Warn("dropping malformed point record")
			continue
		}
		recs = append(recs, rec)
	}
	return recs
}

func (s *FileStore) writeLocked(recs []domain.PointRecord) error {
	if recs == nil {
		recs = []domain.PointRecord{}
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode point log: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		observability.PointLogIOErrors.WithLabelValues("write").Inc()
		s.log.WithError(err).Warn("create point log directory failed")
		return fmt.Errorf("create %s: %w", filepath.Dir(s.path), err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		observability.PointLogIOErrors.WithLabelValues("write").Inc()
		s.log.WithError(err).Warn("write point log failed")
		return fmt.Errorf("write point log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		observability.PointLogIOErrors.WithLabelValues("write").Inc()
		s.log.WithError(err).Warn("replace point log failed")
		return fmt.Errorf("replace point log: %w", err)
	}
	return nil
}
