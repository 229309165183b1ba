// Package app is the composition root: it builds the services, the job queue and
// the background workers from the configuration.
package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/maninjwa/stock-count-backend/internal/config"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/metrics"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/service"
	"github.com/maninjwa/stock-count-backend/internal/worker"
)

// Options carries the optional infrastructure.
type Options struct {
	DB     *gorm.DB       // reported by /health; nil for in-memory stores
	Redis  *redis.Client  // nil disables the distributed lock and the job queue
	Mailer service.Mailer // nil disables comparison notifications
	Now    func() time.Time
}

type Services struct {
	Auth          service.AuthService
	Users         service.UserService
	StockCounts   service.StockCountService
	Areas         service.AreaService
	Assignments   service.AssignmentService
	Sessions      service.SessionService
	Comparisons   service.ComparisonService
	Discrepancies service.DiscrepancyService
	Reports       service.ReportService
	Notifications service.NotificationService // nil without a mailer
}

type App struct {
	Config   *config.Config
	Store    repository.Store
	DB       *gorm.DB
	Redis    *redis.Client
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Services Services

	trigger    service.ReconcileTrigger
	breaker    *infra.CircuitBreaker
	dispatcher *worker.Dispatcher
	pool       *worker.Pool
}

// New wires all dependencies.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, store repository.Store, opts Options) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Store: store, DB: opts.DB, Redis: opts.Redis, Registry: reg, Metrics: m}
	deps := service.Deps{
		Store:      store,
		Policy:     policy.NewEngine(policy.DefaultTable(), policy.ParseAliases(cfg.PolicyLegacyGroupAliases), m),
		Metrics:    m,
		Now:        opts.Now,
		MaxRetries: cfg.ReconcileMaxRetries,
	}

	var notifier service.Notifier
	if opts.Mailer != nil {
		a.Services.Notifications = service.NewNotificationService(deps, opts.Mailer)
		notifier = a.Services.Notifications
	}

	var locker infra.Locker = infra.NopLocker{}
	if opts.Redis != nil {
		locker = infra.NewRedisLocker(opts.Redis, cfg.ReconcileLockTTL())
		a.breaker = infra.NewCircuitBreaker(infra.DefaultCBConfig())
		a.dispatcher = worker.NewDispatcher(opts.Redis, a.breaker, m)
		if notifier != nil && cfg.ReconcileAsync {
			notifier = a.dispatcher
		}
	}

	comparisons := service.NewComparisonService(deps, locker, notifier)
	a.trigger = comparisons
	if cfg.ReconcileAsync && a.dispatcher != nil {
		a.trigger = a.dispatcher.Trigger(comparisons)
	}

	a.Services.Auth = service.NewAuthService(store, cfg)
	a.Services.Users = service.NewUserService(deps)
	a.Services.StockCounts = service.NewStockCountService(deps)
	a.Services.Areas = service.NewAreaService(deps, a.trigger)
	a.Services.Assignments = service.NewAssignmentService(deps, a.trigger)
	a.Services.Sessions = service.NewSessionService(deps, a.trigger)
	a.Services.Comparisons = comparisons
	a.Services.Discrepancies = service.NewDiscrepancyService(deps)
	a.Services.Reports = service.NewReportService(deps)

	if opts.Redis != nil {
		a.pool = worker.NewPool(opts.Redis, cfg.WorkerMaxAttempts, m)
		a.pool.Handle(worker.QueueReconcile, worker.JobReconcile, worker.ReconcileHandler(comparisons))
		if a.Services.Notifications != nil {
			a.pool.Handle(worker.QueueNotify, worker.JobNotify, worker.NotifyHandler(a.Services.Notifications))
		}
	}
	return a, nil
}

// Start launches the worker pool and the stale-area sweep. Both stop when ctx is
// cancelled; Wait blocks until the workers have returned.
func (a *App) Start(ctx context.Context) {
	if a.pool != nil {
		a.pool.Start(ctx, a.Config.WorkerPoolSize)
	} else {
		log.Info().Msg("app: redis disabled, reconciliation runs inline")
	}
	if interval := a.Config.SweepInterval(); interval > 0 {
		worker.StartSweep(ctx, worker.SweepConfig{
			Areas:    a.Store.Areas(),
			Trigger:  a.trigger,
			CB:       a.breaker,
			Interval: interval,
		})
	}
}

func (a *App) Wait() {
	if a.pool != nil {
		a.pool.Wait()
	}
}
