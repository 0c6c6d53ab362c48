package badge

import (
	"context"
	"errors"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// Engine evaluates the active catalog against committed stats.
type Engine struct {
	repo Repository
	log  *logger.Logger
	cal  *timeutil.Calendar
}

// NewEngine creates an Engine.
func NewEngine(repo Repository, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{repo: repo, log: log.With(logger.Component("badge_engine"))}
}

// WithCalendar makes day-based criteria count streak days on cal.
func (e *Engine) WithCalendar(cal *timeutil.Calendar) *Engine {
	e.cal = cal
	return e
}

// CheckAndUnlock evaluates every active definition for userID and records
// newly met badges. Definitions with unknown or unimplemented criteria are
// skipped. Per-badge store failures are logged and joined into the
// returned error while evaluation continues with the next badge.
func (e *Engine) CheckAndUnlock(ctx context.Context, userID string, s *stats.UserStats, now time.Time) ([]Unlocked, error) {
	defs, err := e.repo.ListDefinitions(ctx, false)
	if err != nil {
		return nil, shared.WrapError("badge", "CheckAndUnlock", shared.ErrStoreUnavailable,
			"list definitions", err)
	}

	in := Input{Stats: s, Now: now, Calendar: e.cal}
	var (
		unlocked []Unlocked
		errs     []error
	)

	for _, def := range defs {
		if !def.Active {
			continue
		}

		criteria, err := ParseCriteria(def.Criteria)
		if err != nil {
			e.log.Warn("skipping badge with unknown criteria",
				logger.UserID(userID), logger.BadgeID(def.ID), logger.Err(err))
			continue
		}
		if !implemented(criteria) {
			continue
		}

		times := TimesSatisfied(criteria, in)
		if times == 0 {
			continue
		}
		if !def.Repeatable {
			times = 1
		}

		u, ok, err := e.unlock(ctx, userID, def, times, now)
		if err != nil {
			e.log.Error("badge unlock failed",
				logger.UserID(userID), logger.BadgeID(def.ID),
				logger.Operation("CheckAndUnlock"), logger.Err(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			unlocked = append(unlocked, u)
		}
	}

	return unlocked, errors.Join(errs...)
}

func (e *Engine) unlock(ctx context.Context, userID string, def Definition, times int, now time.Time) (Unlocked, bool, error) {
	created, err := e.repo.CreateUserBadge(ctx, UserBadge{
		UserID:      userID,
		BadgeID:     def.ID,
		EarnedAt:    now,
		TimesEarned: times,
	})
	if err != nil {
		return Unlocked{}, false, err
	}
	if created {
		e.log.Info("badge unlocked",
			logger.UserID(userID), logger.BadgeID(def.ID), logger.Int("times_earned", times))
		return Unlocked{Definition: def, TimesEarned: times, EarnedAt: now}, true, nil
	}

	if !def.Repeatable || times <= 1 {
		return Unlocked{}, false, nil
	}

	raised, err := e.repo.RaiseTimesEarned(ctx, userID, def.ID, times)
	if err != nil || !raised {
		return Unlocked{}, false, err
	}
	e.log.Info("badge earned again",
		logger.UserID(userID), logger.BadgeID(def.ID), logger.Int("times_earned", times))
	return Unlocked{Definition: def, TimesEarned: times, Repeat: true, EarnedAt: now}, true, nil
}

func implemented(criteria []Criterion) bool {
	if len(criteria) == 0 {
		return false
	}
	for _, c := range criteria {
		if !c.Kind.Implemented() {
			return false
		}
	}
	return true
}
