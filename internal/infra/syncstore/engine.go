// Package syncstore reconciles the local point log with an optional remote
// copy.
//
// Local operations run synchronously on the caller's goroutine and are the
// only failures a caller sees. Remote operations are queued to a single
// background worker per Engine:
//   - best effort: failures are logged, counted and reported on Events
//   - no retry, no backpressure: a full queue drops the job
//   - FIFO: a delete queued before a refresh reaches the remote first
//
// Reads return the local snapshot at once and queue a refresh that merges the
// remote snapshot into the local log (remote wins per id). Two consecutive
// reads may therefore differ once the refresh lands.
package syncstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rallylog/rallylog/internal/domain"
	"github.com/rallylog/rallylog/internal/infra/observability"
)

// LocalLog is the durable local point log (see pointlog.FileStore).
type LocalLog interface {
	LoadAll() []domain.PointRecord
	Append(rec domain.PointRecord) error
	DeleteByID(id string) error
	DeleteLast() (*domain.PointRecord, error)
	Update(fn func([]domain.PointRecord) []domain.PointRecord) error
	Clear() error
}

// Op names a remote operation.
type Op string

const (
	OpInsert    Op = "insert"
	OpDelete    Op = "delete"
	OpDeleteAll Op = "delete_all"
	OpRefresh   Op = "refresh"
	OpBackfill  Op = "backfill"
	opFlush     Op = "flush"
)

// Event reports the outcome of one remote operation.
type Event struct {
	Op      Op        `json:"op"`
	ID      string    `json:"id,omitempty"`
	Records int       `json:"records,omitempty"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// OK reports whether the operation succeeded.
func (e Event) OK() bool { return e.Err == "" }

// Config controls the background worker.
type Config struct {
	QueueSize       int // Pending remote jobs (default: 64)
	EventBuffer     int // Undelivered events kept before dropping (default: 32)
	BackfillWorkers int // Concurrent inserts during Backfill (default: 4)
}

// DefaultConfig returns worker defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:       64,
		EventBuffer:     32,
		BackfillWorkers: 4,
	}
}

type job struct {
	op   Op
	rec  domain.PointRecord
	id   string
	done chan struct{}
}

// Engine is the sync merge engine. A nil remote makes it a thin wrapper over
// the local log with no worker and no merge step.
type Engine struct {
	local  LocalLog
	remote domain.RemoteStore
	config Config
	log    logrus.FieldLogger

	mu     sync.RWMutex // guards closed and sends on jobs
	closed bool
	jobs   chan job
	events chan Event

	refreshPending atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an engine and, when remote is non-nil, starts its worker.
func New(local LocalLog, remote domain.RemoteStore, cfg Config, log logrus.FieldLogger) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if cfg.BackfillWorkers <= 0 {
		cfg.BackfillWorkers = DefaultConfig().BackfillWorkers
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		local:  local,
		remote: remote,
		config: cfg,
		log:    log.WithField("component", "syncstore"),
		events: make(chan Event, cfg.EventBuffer),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if remote == nil {
		close(e.done)
		return e
	}
	e.jobs = make(chan job, cfg.QueueSize)
	go e.run()
	return e
}

// RemoteEnabled reports whether a remote store is attached.
func (e *Engine) RemoteEnabled() bool { return e.remote != nil }

// Events delivers remote operation outcomes. Events are dropped when nobody
// reads them.
func (e *Engine) Events() <-chan Event { return e.events }

// ─── Point Operations ───────────────────────────────────────────────────────

// Save appends rec locally and queues the remote insert. Only the local
// error is returned.
func (e *Engine) Save(rec domain.PointRecord) error {
	err := e.local.Append(rec)
	if err != nil {
		e.log.WithError(err).WithField("id", rec.ID).Warn("local save failed")
	}
	e.enqueue(job{op: OpInsert, rec: rec, id: rec.ID})
	return err
}

// LoadAll returns the local snapshot, newest first, and queues a remote
// refresh that updates the local log for the next read.
func (e *Engine) LoadAll() []domain.PointRecord {
	recs := e.local.LoadAll()
	domain.SortByTimestampDesc(recs)

	if e.remote != nil && e.refreshPending.CompareAndSwap(false, true) {
		if !e.enqueue(job{op: OpRefresh}) {
			e.refreshPending.Store(false)
		}
	}
	return recs
}

// Remove deletes id locally and queues the remote delete.
func (e *Engine) Remove(id string) error {
	err := e.local.DeleteByID(id)
	if err != nil {
		e.log.WithError(err).WithField("id", id).Warn("local delete failed")
	}
	e.enqueue(job{op: OpDelete, id: id})
	return err
}

// RemoveLast deletes the most recently appended local record and queues its
// remote delete. An empty log returns nil, nil.
func (e *Engine) RemoveLast() (*domain.PointRecord, error) {
	rec, err := e.local.DeleteLast()
	if err != nil {
		e.log.WithError(err).Warn("local delete-last failed")
		return nil, err
	}
	if rec != nil {
		e.enqueue(job{op: OpDelete, id: rec.ID})
	}
	return rec, nil
}

// Clear queues the remote delete-all and clears the local log.
func (e *Engine) Clear() error {
	e.enqueue(job{op: OpDeleteAll})
	err := e.local.Clear()
	if err != nil {
		e.log.WithError(err).Warn("local clear failed")
	}
	return err
}

// ─── Reconciliation ─────────────────────────────────────────────────────────

// Reconcile fetches the remote snapshot, merges it into the local log and
// returns the merged view newest first. On remote failure the local snapshot
// is returned together with the error.
func (e *Engine) Reconcile(ctx context.Context) ([]domain.PointRecord, error) {
	if e.remote == nil {
		recs := e.local.LoadAll()
		domain.SortByTimestampDesc(recs)
		return recs, domain.ErrRemoteDisabled
	}

	remote, err := e.remote.SelectAll(ctx)
	observability.SyncRemoteOps.WithLabelValues(string(OpRefresh), observability.ResultLabel(err)).Inc()
	if err != nil {
		recs := e.local.LoadAll()
		domain.SortByTimestampDesc(recs)
		return recs, fmt.Errorf("fetch remote points: %w", err)
	}

	var merged []domain.PointRecord
	err = e.local.Update(func(cur []domain.PointRecord) []domain.PointRecord {
		merged = Merge(cur, remote)
		return chronological(merged)
	})
	if err != nil {
		e.log.WithError(err).Warn("persist merged point log failed")
	}
	observability.SyncMergeSize.Observe(float64(len(merged)))
	return merged, nil
}

// Backfill pushes local records the remote does not have. Remote inserts are
// never retried on their own, so this is how points logged offline reach
// the remote. Returns the number of records pushed.
func (e *Engine) Backfill(ctx context.Context) (int, error) {
	if e.remote == nil {
		return 0, domain.ErrRemoteDisabled
	}

	var local, remote []domain.PointRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		local = e.local.LoadAll()
		return nil
	})
	g.Go(func() error {
		var err error
		remote, err = e.remote.SelectAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("fetch remote points: %w", err)
	}

	known := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		known[r.ID] = struct{}{}
	}

	var pushed atomic.Int64
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(e.config.BackfillWorkers)
	for _, rec := range local {
		if _, ok := known[rec.ID]; ok {
			continue
		}
		g.Go(func() error {
			err := e.remote.Insert(gctx, rec)
			observability.SyncRemoteOps.WithLabelValues(string(OpInsert), observability.ResultLabel(err)).Inc()
			if err != nil {
				return err
			}
			pushed.Add(1)
			return nil
		})
	}
	err := g.Wait()
	n := int(pushed.Load())
	e.emit(Event{Op: OpBackfill, Records: n, Err: errString(err)})
	if err != nil {
		return n, fmt.Errorf("backfill: %w", err)
	}
	return n, nil
}

// ─── Worker ─────────────────────────────────────────────────────────────────

// enqueue hands j to the worker without blocking. Returns false if the job
// was dropped.
func (e *Engine) enqueue(j job) bool {
	if e.remote == nil {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.log.WithField("op", j.op).Debug("sync engine closed, dropping remote job")
		return false
	}

	select {
	case e.jobs <- j:
		observability.SyncQueueDepth.Set(float64(len(e.jobs)))
		return true
	default:
		observability.SyncJobsDropped.WithLabelValues(string(j.op)).Inc()
		e.log.WithField("op", j.op).WithField("id", j.id).Warn("sync queue full, dropping remote job")
		if j.op != opFlush {
			e.emit(Event{Op: j.op, ID: j.id, Err: domain.ErrQueueFull.Error()})
		}
		return false
	}
}

func (e *Engine) run() {
	defer close(e.done)
	for j := range e.jobs {
		observability.SyncQueueDepth.Set(float64(len(e.jobs)))
		e.process(j)
	}
}

func (e *Engine) process(j job) {
	var err error
	ev := Event{Op: j.op, ID: j.id}

	switch j.op {
	case opFlush:
		close(j.done)
		return
	case OpInsert:
		err = e.remote.Insert(e.ctx, j.rec)
	case OpDelete:
		err = e.remote.DeleteByID(e.ctx, j.id)
	case OpDeleteAll:
		err = e.remote.DeleteAll(e.ctx)
	case OpRefresh:
		e.refreshPending.Store(false)
		var merged []domain.PointRecord
		merged, err = e.Reconcile(e.ctx)
		ev.Records = len(merged)
	}

	if j.op != OpRefresh {
		observability.SyncRemoteOps.WithLabelValues(string(j.op), observability.ResultLabel(err)).Inc()
	}
	if err != nil {
		e.log.WithError(err).WithField("op", j.op).WithField("id", j.id).Warn("remote operation failed")
	}
	ev.Err = errString(err)
	e.emit(ev)
}

// Wait blocks until every job queued before the call has been processed.
func (e *Engine) Wait(ctx context.Context) error {
	if e.remote == nil {
		return nil
	}
	done := make(chan struct{})
	if !e.enqueue(job{op: opFlush, done: done}) {
		e.mu.RLock()
		closed := e.closed
		e.mu.RUnlock()
		if closed {
			return domain.ErrEngineClosed
		}
		return domain.ErrQueueFull
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and drains the queue until ctx expires. After
// that the worker's context is cancelled and Close returns without waiting.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	if e.jobs != nil {
		close(e.jobs)
	}
	e.mu.Unlock()

	select {
	case <-e.done:
		e.cancel()
		return nil
	case <-ctx.Done():
		// A hung remote call may never return; do not wait for it.
		e.cancel()
		return ctx.Err()
	}
}

func (e *Engine) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case e.events <- ev:
	default:
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return err.Error()
}
