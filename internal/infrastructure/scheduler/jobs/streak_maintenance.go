// Package jobs contains the scheduled jobs of the gamification worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/streak"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

var tracer = otel.Tracer("github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/scheduler/jobs")

// ══════════════════════════════════════════════════════════════════════════════
// STREAK MAINTENANCE JOB
// ══════════════════════════════════════════════════════════════════════════════

// RunState is the phase of a maintenance run.
type RunState string

const (
	StateIdle            RunState = "idle"
	StateScanning        RunState = "scanning"
	StateProcessingBatch RunState = "processing_batch"
	StateComplete        RunState = "complete"
	StateFailedPartial   RunState = "failed_partial"
	StateSkipped         RunState = "skipped"
)

// Locker grants a single holder per key. release is nil when acquired is false.
type Locker interface {
	TryLock(ctx context.Context, key string) (release func(context.Context) error, acquired bool, err error)
}

// StreakMaintenanceConfig contains configuration for the maintenance job.
type StreakMaintenanceConfig struct {
	// PageSize is how many documents are fetched per scan page.
	PageSize int

	// Parallelism bounds concurrent user updates within a page.
	Parallelism int

	// Timeout is the maximum duration of one run. 0 disables it.
	Timeout time.Duration

	// LockKey builds the run lock key for a streak day.
	LockKey func(day string) string
}

// DefaultStreakMaintenanceConfig returns sensible defaults.
func DefaultStreakMaintenanceConfig() StreakMaintenanceConfig {
	return StreakMaintenanceConfig{
		PageSize:    100,
		Parallelism: 8,
		Timeout:     30 * time.Minute,
		LockKey:     func(day string) string { return "lock:maintenance:streak:" + day },
	}
}

// MaintenanceSummary is the outcome of one run.
type MaintenanceSummary struct {
	RunID          string        `json:"run_id"`
	Day            timeutil.Day  `json:"day"`
	State          RunState      `json:"state"`
	UsersScanned   int           `json:"users_scanned"`
	FreezesApplied int           `json:"freezes_applied"`
	StreaksBroken  int           `json:"streaks_broken"`
	Errors         int           `json:"errors"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// StreakMaintenanceJob resolves missed days for users who did not come back.
// It uses the same ResolveMissedDays rule and conditional write as the live
// activity path, so a user acting during the run is never double-handled.
type StreakMaintenanceJob struct {
	tx        *stats.Transactor
	engine    *streak.Engine
	publisher shared.EventPublisher
	locker    Locker
	log       *logger.Logger
	config    StreakMaintenanceConfig
	clock     func() time.Time

	state        atomic.Value // RunState
	lastRunStats atomic.Value // *MaintenanceSummary
}

// NewStreakMaintenanceJob creates the job. locker may be nil.
func NewStreakMaintenanceJob(
	tx *stats.Transactor,
	engine *streak.Engine,
	publisher shared.EventPublisher,
	locker Locker,
	log *logger.Logger,
	config StreakMaintenanceConfig,
) *StreakMaintenanceJob {
	defaults := DefaultStreakMaintenanceConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.Parallelism <= 0 {
		config.Parallelism = defaults.Parallelism
	}
	if config.LockKey == nil {
		config.LockKey = defaults.LockKey
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}

	j := &StreakMaintenanceJob{
		tx:        tx,
		engine:    engine,
		publisher: publisher,
		locker:    locker,
		log:       log.With(logger.Component("streak_maintenance")),
		config:    config,
		clock:     time.Now,
	}
	j.state.Store(StateIdle)
	return j
}

// WithClock overrides the time source. Intended for tests.
func (j *StreakMaintenanceJob) WithClock(clock func() time.Time) *StreakMaintenanceJob {
	j.clock = clock
	return j
}

// Name returns the job name.
func (j *StreakMaintenanceJob) Name() string { return "streak_maintenance" }

// Description returns a human-readable description.
func (j *StreakMaintenanceJob) Description() string {
	return "Consumes freezes or resets streaks for users who missed a streak day"
}

// State returns the phase of the current or last run.
func (j *StreakMaintenanceJob) State() RunState {
	return j.state.Load().(RunState)
}

// LastRunStats returns the summary of the last finished run, if any.
func (j *StreakMaintenanceJob) LastRunStats() *MaintenanceSummary {
	if s, ok := j.lastRunStats.Load().(*MaintenanceSummary); ok {
		return s
	}
	return nil
}

// Run implements scheduler.Job.
func (j *StreakMaintenanceJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce performs one full pass and returns its summary. The summary is
// returned even when the run ends in failed_partial.
func (j *StreakMaintenanceJob) RunOnce(ctx context.Context) (*MaintenanceSummary, error) {
	startedAt := j.clock()
	today := j.engine.StreakDay(startedAt)
	summary := &MaintenanceSummary{
		RunID:     uuid.NewString(),
		Day:       today,
		StartedAt: startedAt,
	}
	log := j.log.With(logger.RunID(summary.RunID), logger.StreakDay(today.String()))

	ctx, span := tracer.Start(ctx, "StreakMaintenance")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", summary.RunID),
		attribute.String("streak_day", today.String()),
	)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	if j.locker != nil {
		release, acquired, err := j.locker.TryLock(ctx, j.config.LockKey(today.String()))
		switch {
		case err != nil:
			// Every update is a conditional write, so running unlocked stays correct.
			log.Warn("maintenance lock unavailable, running unlocked", logger.Err(err))
		case !acquired:
			log.Info("maintenance already running elsewhere, skipped")
			summary.State = StateSkipped
			summary.Duration = j.clock().Sub(startedAt)
			span.SetAttributes(attribute.String("state", string(summary.State)))
			return summary, nil
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("failed to release maintenance lock", logger.Err(err))
				}
			}()
		}
	}

	log.Info("streak maintenance started")

	var counters runCounters
	scanErr := j.scan(ctx, today, &counters, log)

	summary.UsersScanned = int(counters.scanned.Load())
	summary.FreezesApplied = int(counters.frozen.Load())
	summary.StreaksBroken = int(counters.broken.Load())
	summary.Errors = int(counters.errors.Load())
	summary.Duration = j.clock().Sub(startedAt)
	summary.State = StateComplete
	if scanErr != nil {
		summary.State = StateFailedPartial
		span.RecordError(scanErr)
		span.SetStatus(codes.Error, "scan failed")
	}
	j.setState(summary.State)
	j.lastRunStats.Store(summary)

	span.SetAttributes(
		attribute.String("state", string(summary.State)),
		attribute.Int("users_scanned", summary.UsersScanned),
		attribute.Int("freezes_applied", summary.FreezesApplied),
		attribute.Int("streaks_broken", summary.StreaksBroken),
		attribute.Int("errors", summary.Errors),
	)

	fields := []logger.Field{
		logger.String("state", string(summary.State)),
		logger.Int("users_scanned", summary.UsersScanned),
		logger.Int("freezes_applied", summary.FreezesApplied),
		logger.Int("streaks_broken", summary.StreaksBroken),
		logger.Int("errors", summary.Errors),
		logger.Latency(summary.Duration),
	}
	if scanErr != nil {
		log.Error("streak maintenance aborted", append(fields, logger.Err(scanErr))...)
	} else {
		log.Info("streak maintenance completed", fields...)
	}

	j.publish(log, shared.MaintenanceCompletedEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventMaintenanceCompleted, summary.RunID, j.clock()),
		RunID:          summary.RunID,
		State:          string(summary.State),
		UsersScanned:   summary.UsersScanned,
		FreezesApplied: summary.FreezesApplied,
		StreaksBroken:  summary.StreaksBroken,
		Errors:         summary.Errors,
	})

	if scanErr != nil {
		return summary, fmt.Errorf("streak maintenance %s: %w", summary.RunID, scanErr)
	}
	return summary, nil
}

type runCounters struct {
	scanned atomic.Int64
	frozen  atomic.Int64
	broken  atomic.Int64
	errors  atomic.Int64
}

func (j *StreakMaintenanceJob) setState(s RunState) { j.state.Store(s) }

// scan walks every document in user ID order. Only a failed page fetch or a
// cancelled context ends the walk early.
func (j *StreakMaintenanceJob) scan(ctx context.Context, today timeutil.Day, c *runCounters, log *logger.Logger) error {
	repo := j.tx.Repository()
	after := ""

	for {
		j.setState(StateScanning)
		page, err := repo.ScanPage(ctx, after, j.config.PageSize)
		if err != nil {
			return fmt.Errorf("scan after %q: %w", after, err)
		}
		if len(page) == 0 {
			return nil
		}
		c.scanned.Add(int64(len(page)))
		after = page[len(page)-1].UserID

		j.setState(StateProcessingBatch)
		j.processPage(ctx, page, today, c, log)

		if err := ctx.Err(); err != nil {
			return err
		}
		if len(page) < j.config.PageSize {
			return nil
		}
	}
}

func (j *StreakMaintenanceJob) processPage(ctx context.Context, page []*stats.UserStats, today timeutil.Day, c *runCounters, log *logger.Logger) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Parallelism)

	for _, doc := range page {
		if !Due(doc.Streak, today) {
			continue
		}
		userID := doc.UserID
		g.Go(func() error {
			// Per-user failures are counted, they never cancel the page.
			if err := j.processUser(gctx, userID, today, c); err != nil {
				c.errors.Add(1)
				log.Error("streak maintenance failed for user",
					logger.UserID(userID),
					logger.Operation("ResolveMissedDays"),
					logger.Err(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Due reports whether a streak needs maintenance on today: it is active and
// at least one full streak day has passed without activity. It reads only
// the last activity day and the current count, so a rerun finds nothing.
func Due(s stats.Streak, today timeutil.Day) bool {
	return s.CurrentCount > 0 && !s.LastActivityDay.IsZero() && today.Since(s.LastActivityDay) >= 2
}

func (j *StreakMaintenanceJob) processUser(ctx context.Context, userID string, today timeutil.Day, c *runCounters) error {
	var (
		resolution streak.Resolution
		previous   int
		missed     int
	)

	committed, err := j.tx.Update(ctx, userID, func(s *stats.UserStats) error {
		previous = s.Streak.CurrentCount
		missed = streak.MissedDays(s.Streak, today)
		resolution = j.engine.ResolveMissedDays(&s.Streak, today)
		if resolution == streak.ResolutionNone {
			return stats.ErrNoChange
		}
		s.UpdatedAt = j.clock()
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Document vanished between scan and update.
			return nil
		}
		return err
	}

	log := j.log.With(logger.UserID(userID), logger.StreakDay(today.String()))
	now := j.clock()

	switch resolution {
	case streak.ResolutionFrozen:
		c.frozen.Add(1)
		log.Info("freeze applied",
			logger.Int("freezes_remaining", committed.Streak.FreezesAvailable),
			logger.Int("streak", committed.Streak.CurrentCount),
		)
		j.publish(log, shared.FreezeUsedEvent{
			BaseEvent:        shared.NewBaseEvent(shared.EventFreezeUsed, userID, now),
			UserID:           userID,
			CoveredDay:       committed.Streak.LastFreezeDay.String(),
			FreezesRemaining: committed.Streak.FreezesAvailable,
			Source:           "maintenance",
		})
	case streak.ResolutionBroken:
		c.broken.Add(1)
		log.Info("streak broken",
			logger.Int("previous_streak", previous),
			logger.Int("days_missed", missed),
			logger.Int("longest_streak", committed.Streak.LongestStreak),
		)
		j.publish(log, shared.StreakBrokenEvent{
			BaseEvent:      shared.NewBaseEvent(shared.EventStreakBroken, userID, now),
			UserID:         userID,
			PreviousStreak: previous,
			DaysMissed:     missed,
			Source:         "maintenance",
		})
	}
	return nil
}

func (j *StreakMaintenanceJob) publish(log *logger.Logger, event shared.Event) {
	if err := j.publisher.Publish(event); err != nil {
		log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}
