package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/rallylog/rallylog/internal/api"
	"github.com/rallylog/rallylog/internal/app/tracker"
	"github.com/rallylog/rallylog/internal/domain"
	"github.com/rallylog/rallylog/internal/infra/pointlog"
	"github.com/rallylog/rallylog/internal/infra/remote"
	"github.com/rallylog/rallylog/internal/infra/sqlite"
	"github.com/rallylog/rallylog/internal/infra/syncstore"
)

// App holds every store built from one Config. Commands open it, use the
// tracker and close it.
type App struct {
	Config  Config
	Log     *logrus.Logger
	DB      *sqlite.DB
	Points  *pointlog.FileStore
	Engine  *syncstore.Engine
	Tracker *tracker.Tracker
}

// Open builds the stores. Only a local storage failure is fatal; a remote
// that is unconfigured or fails to initialise leaves the app local-only.
func Open(cfg Config, log *logrus.Logger) (*App, error) {
	db, err := sqlite.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("open match history: %w", err)
	}

	points := pointlog.NewFileStore(cfg.PointLogPath(), log)

	var rs domain.RemoteStore
	rcfg := cfg.RemoteStore()
	switch {
	case rcfg.Enabled():
		store, err := remote.NewSupabaseStore(rcfg, log)
		if err != nil {
			log.WithError(err).Warn("remote store unavailable, running local-only")
		} else {
			rs = store
		}
	case rcfg.URL != "":
		log.Warn("remote url set but key is not a Supabase anon or publishable key, running local-only")
	}

	engine := syncstore.New(points, rs, syncstore.Config{QueueSize: cfg.Remote.QueueSize}, log)
	tr := tracker.New(engine, db, tracker.Config{Credits: cfg.Credits()}, log)

	return &App{
		Config:  cfg,
		Log:     log,
		DB:      db,
		Points:  points,
		Engine:  engine,
		Tracker: tr,
	}, nil
}

// Close drains pending remote work until ctx expires, then closes the
// database.
func (a *App) Close(ctx context.Context) error {
	engineErr := a.Engine.Close(ctx)
	if engineErr != nil {
		a.Log.WithError(engineErr).Warn("sync queue not fully drained")
	}
	return errors.Join(engineErr, a.DB.Close())
}

// ─── Serve Loop ─────────────────────────────────────────────────────────────

// Serve runs the HTTP API and the periodic remote refresh until ctx is
// cancelled, then shuts both down.
func Serve(ctx context.Context, a *App) error {
	log := a.Log.WithField("component", "daemon")

	hub := api.NewSyncHub()
	srv := api.NewServer(a.Tracker, a.Log)
	srv.SetSyncHub(hub)
	if a.Config.Metrics.Enabled {
		srv.EnableMetrics()
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx, a.Engine.Events())

	sched, err := startRefresh(ctx, a, log)
	if err != nil {
		return err
	}
	if sched != nil {
		defer sched.Shutdown()
	}

	httpSrv := &http.Server{
		Addr:              a.Config.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":   httpSrv.Addr,
			"remote": a.Engine.RemoteEnabled(),
		}).Info("rally API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", httpSrv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// startRefresh schedules Engine.Reconcile every sync.refresh_interval.
// Returns nil when remote sync or the interval is off.
func startRefresh(ctx context.Context, a *App, log logrus.FieldLogger) (gocron.Scheduler, error) {
	interval, err := a.Config.RefreshInterval()
	if err != nil {
		return nil, err
	}
	if interval == 0 || !a.Engine.RemoteEnabled() {
		return nil, nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			recs, err := a.Engine.Reconcile(ctx)
			if err != nil {
				log.WithError(err).Warn("periodic refresh failed")
				return
			}
			log.WithField("records", len(recs)).Debug("periodic refresh done")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}
	sched.Start()
	log.WithField("interval", interval).Info("periodic refresh scheduled")
	return sched, nil
}
