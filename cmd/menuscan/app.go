package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kimhsiao/menuscan/backend/cmd/menuscan/handlers"
	"github.com/kimhsiao/menuscan/backend/internal/config"
	"github.com/kimhsiao/menuscan/backend/internal/db"
	"github.com/kimhsiao/menuscan/backend/internal/extract"
	"github.com/kimhsiao/menuscan/backend/internal/services"
	syncpkg "github.com/kimhsiao/menuscan/backend/internal/sync"
	"github.com/kimhsiao/menuscan/backend/internal/sync/connectivity"
	"github.com/kimhsiao/menuscan/backend/internal/sync/queue"
	"github.com/kimhsiao/menuscan/backend/internal/sync/scheduler"
	"github.com/kimhsiao/menuscan/backend/internal/telemetry"
)

// app wires the store, queue, gate, engine and scheduler for one process.
type app struct {
	cfg       *config.Config
	db        *db.DB
	repo      *db.Repository
	queue     *queue.Queue
	gate      *connectivity.Gate
	engine    *syncpkg.SyncEngine
	scheduler *scheduler.Scheduler
	menus     *services.MenuService
	registry  *prometheus.Registry
}

// newApp opens and migrates the database and builds the sync stack.
func newApp(c *config.Config) (*app, error) {
	database, err := db.OpenAndMigrate(c.DataDir)
	if err != nil {
		return nil, err
	}
	repo := db.NewRepository(database.DB)
	q := queue.NewQueue(repo)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(registry)

	client := &http.Client{Timeout: c.HTTP.Timeout}
	prober, err := connectivity.NewProber(c.Connectivity.Mode, c.Server.BaseURL, c.Server.HealthPath, client)
	if err != nil {
		repo.Close()
		database.Close()
		return nil, err
	}
	gate := connectivity.NewGate(prober, c.Connectivity.Mode == connectivity.ModeOnline, metrics)

	engine, err := syncpkg.NewSyncEngine(repo, q, gate, syncpkg.Options{
		BaseURL: c.Server.BaseURL,
		Client:  client,
		Metrics: metrics,
	})
	if err != nil {
		repo.Close()
		database.Close()
		return nil, err
	}

	sched := scheduler.NewScheduler(engine, gate, q, &scheduler.SchedulerConfig{
		SyncInterval:  c.Sync.Interval,
		ProbeInterval: c.Connectivity.ProbeInterval,
	})

	return &app{
		cfg:       c,
		db:        database,
		repo:      repo,
		queue:     q,
		gate:      gate,
		engine:    engine,
		scheduler: sched,
		menus: services.NewMenuService(repo, q, services.Endpoints{
			Menus: c.Endpoints.Menus,
			Items: c.Endpoints.Items,
		}),
		registry: registry,
	}, nil
}

// extractor builds the configured vision extractor.
func (a *app) extractor() (extract.Extractor, error) {
	return extract.New(extract.Config{
		Provider:  a.cfg.Extract.Provider,
		APIKey:    a.cfg.Extract.APIKey,
		Model:     a.cfg.Extract.Model,
		BaseURL:   a.cfg.Extract.BaseURL,
		MaxTokens: a.cfg.Extract.MaxTokens,
	})
}

// router builds the local API. hub may be nil.
func (a *app) router(hub *WSHub) http.Handler {
	deps := handlers.Deps{
		Menus:     a.menus,
		Sync:      a.scheduler,
		Extractor: a.extractor,
		Metrics:   promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	}
	if hub != nil {
		deps.WebSocket = HandleWebSocket(hub)
	}
	return handlers.NewRouter(deps)
}

// syncOnce probes connectivity and drains the queue once.
func (a *app) syncOnce(ctx context.Context) syncpkg.DrainResult {
	a.gate.Refresh(ctx)
	return a.scheduler.SyncNow(ctx)
}

func (a *app) close() {
	a.scheduler.Stop()
	a.repo.Close()
	a.db.Close()
}
