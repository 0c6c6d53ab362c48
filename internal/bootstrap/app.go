// Package bootstrap assembles the gamification engine from configuration.
// Both binaries build an App and then drive it: the worker through the
// scheduler, gamectl through one-shot commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/config"
	"github.com/TEJ42000/ALLMS-sub004/internal/application/command"
	"github.com/TEJ42000/ALLMS-sub004/internal/application/eventhandler"
	"github.com/TEJ42000/ALLMS-sub004/internal/application/query"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/streak"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/xp"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/messaging"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/persistence/memory"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/persistence/postgres"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/persistence/redis"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/scheduler/jobs"
	"github.com/TEJ42000/ALLMS-sub004/internal/observability"
	"github.com/TEJ42000/ALLMS-sub004/pkg/circuitbreaker"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// App holds every wired component.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	StatsRepo stats.Repository
	BadgeRepo badge.Repository
	Tx        *stats.Transactor

	XP     *xp.Engine
	Streak *streak.Engine
	Badges *badge.Engine

	Bus   *messaging.InMemoryEventBus
	Audit *eventhandler.AuditHandler

	RecordActivity *command.RecordActivityHandler
	GetStats       *query.GetStatsHandler
	ListBadges     *query.ListBadgesHandler
	Maintenance    *jobs.StreakMaintenanceJob

	// Set only for the postgres driver.
	DB       *postgres.Connection
	Migrator *postgres.Migrator

	// Nil when Redis is disabled or unreachable.
	Redis *redis.Cache

	closers []func(context.Context) error
}

// NewLogger builds the process logger from observability settings.
func NewLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = cfg.Observability.LogFormat
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
}

// New wires an App. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (app *App, err error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	shutdown := observability.InitTracing(ctx, log, observability.Config{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: cfg.App.Name,
		Environment: string(cfg.App.Environment),
		Version:     cfg.App.Version,
		SampleRatio: cfg.Observability.TracingSampleRatio,
		PrettyPrint: cfg.Observability.TracingPretty,
	})
	a.closers = append(a.closers, shutdown)

	if err := a.openStores(ctx); err != nil {
		return nil, err
	}
	a.openRedis(ctx)

	if err := a.buildEngines(); err != nil {
		return nil, err
	}
	if err := a.buildBus(); err != nil {
		return nil, err
	}
	a.buildHandlers()

	if cfg.Gamification.BadgeSeedFile != "" {
		n, err := a.SeedBadgesFromFile(ctx, cfg.Gamification.BadgeSeedFile)
		if err != nil {
			return nil, err
		}
		log.Info("badge catalog seeded", logger.Int("definitions", n))
	}

	log.Info("gamification engine ready",
		logger.String("store", cfg.Database.Driver),
		logger.Bool("redis", a.Redis != nil),
		logger.String("timezone", cfg.Gamification.Timezone),
	)
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config.Database

	switch cfg.Driver {
	case config.DriverPostgres:
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.URL, postgres.PoolOptions{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.ConnMaxLifetime,
			MaxConnIdleTime: cfg.ConnMaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.DB = conn
		a.closers = append(a.closers, func(context.Context) error { conn.Close(); return nil })

		a.Migrator = postgres.NewMigrator(conn)
		if cfg.AutoMigrate {
			n, err := a.Migrator.Migrate(ctx)
			if err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			a.Log.Info("database schema is up to date", logger.Int("applied", n))
		}
		a.StatsRepo = postgres.NewStatsRepository(conn)
		a.BadgeRepo = postgres.NewBadgeRepository(conn)
	default:
		a.Log.Warn("using in-memory store, data is lost on exit")
		a.StatsRepo = memory.NewStatsStore()
		a.BadgeRepo = memory.NewBadgeStore()
	}

	a.Tx = stats.NewTransactor(a.StatsRepo, stats.TxConfig{
		MaxAttempts:  cfg.TxMaxAttempts,
		InitialDelay: cfg.TxInitialDelay,
		MaxDelay:     cfg.TxMaxDelay,
		Jitter:       stats.DefaultTxConfig().Jitter,
	})
	return nil
}

// openRedis is best effort: without Redis the catalog is read from the store
// and the maintenance lock is process-local.
func (a *App) openRedis(ctx context.Context) {
	rc := a.Config.Redis
	if rc.Disabled {
		return
	}

	cache, err := redis.NewCache(ctx, redis.Config{
		URL:          rc.URL,
		Addr:         rc.Addr(),
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   redis.DefaultConfig().MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})
	if err != nil {
		a.Log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return
	}
	a.Redis = cache
	a.closers = append(a.closers, func(context.Context) error { return cache.Close() })

	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		a.Log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	a.BadgeRepo = redis.NewCachedBadgeRepository(a.BadgeRepo, cache, rc.BadgeCacheTTL, breaker, a.Log)
}

func (a *App) buildEngines() error {
	g := a.Config.Gamification

	cal, err := timeutil.NewCalendar(g.Location, g.CutoverHour, g.WeekAnchor)
	if err != nil {
		return fmt.Errorf("streak calendar: %w", err)
	}

	xpCfg := xp.DefaultConfig()
	xpCfg.MaxMultiplier = g.MaxMultiplier
	a.XP, err = xp.NewEngine(xpCfg)
	if err != nil {
		return fmt.Errorf("xp engine: %w", err)
	}

	a.Streak = streak.NewEngine(streak.Config{
		XPPerFreeze:        g.XPPerFreeze,
		MaxFreezes:         g.MaxFreezes,
		WeeklyBonusEnabled: a.Config.Features.IsEnabled(config.FeatureWeeklyBonus),
		BonusMultiplier:    g.BonusMultiplier,
		BonusWeeks:         g.BonusWeeks,
	}, cal)

	a.Badges = badge.NewEngine(a.BadgeRepo, a.Log).WithCalendar(cal)
	return nil
}

func (a *App) buildBus() error {
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = a.Log
	a.Bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, a.Bus.Close)

	a.Audit = eventhandler.NewAuditHandler(a.Log)
	if err := a.Audit.Register(a.Bus); err != nil {
		return fmt.Errorf("register audit handler: %w", err)
	}

	if a.Redis != nil && a.Config.Features.IsEnabled(config.FeatureEventFanout) {
		fanout := messaging.NewRedisFanout(a.Redis.Client(), a.Log)
		if err := a.Bus.SubscribeAll(fanout.Handle); err != nil {
			return fmt.Errorf("register redis fanout: %w", err)
		}
	}
	return nil
}

func (a *App) buildHandlers() {
	flags := a.Config.Features

	recordCfg := command.DefaultRecordActivityHandlerConfig()
	recordCfg.EvaluateBadges = true
	recordCfg.BadgeGate = func(userID string) bool {
		return flags.IsEnabledFor(config.FeatureBadgeEvaluation, userID)
	}
	a.RecordActivity = command.NewRecordActivityHandler(a.Tx, a.XP, a.Streak, a.Badges, a.Bus, a.Log, recordCfg)

	a.GetStats = query.NewGetStatsHandler(a.StatsRepo, a.XP, a.Streak, time.Now)
	a.ListBadges = query.NewListBadgesHandler(a.BadgeRepo)

	m := a.Config.Maintenance
	a.Maintenance = jobs.NewStreakMaintenanceJob(a.Tx, a.Streak, a.Bus, a.maintenanceLocker(), a.Log,
		jobs.StreakMaintenanceConfig{
			PageSize:    m.PageSize,
			Parallelism: m.Parallelism,
			Timeout:     m.Timeout,
			LockKey:     redis.MaintenanceLockKey,
		})
}

func (a *App) maintenanceLocker() jobs.Locker {
	if !a.Config.Features.IsEnabled(config.FeatureMaintenanceLock) {
		return nil
	}
	if a.Redis != nil {
		return redis.NewRunLock(a.Redis.Client(), a.Config.Maintenance.LockTTL)
	}
	return memory.NewRunLock()
}

// SeedBadges upserts every definition in a YAML catalog and returns how many
// were written.
func (a *App) SeedBadges(ctx context.Context, r io.Reader) (int, error) {
	defs, err := badge.LoadDefinitionsYAML(r)
	if err != nil {
		return 0, err
	}
	for _, d := range defs {
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		if err := a.BadgeRepo.UpsertDefinition(ctx, d); err != nil {
			return 0, fmt.Errorf("upsert badge %q: %w", d.ID, err)
		}
		if !d.Active {
			a.Log.Info("badge loaded inactive", logger.BadgeID(d.ID))
		}
	}
	return len(defs), nil
}

// SeedBadgesFromFile is SeedBadges over a file path.
func (a *App) SeedBadgesFromFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open badge catalog: %w", err)
	}
	defer f.Close()
	return a.SeedBadges(ctx, f)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
