// Package streak implements the daily streak rules: streak-day arithmetic,
// missed-day resolution with freezes, freeze awards and the weekly
// consistency bonus. The engine is stateless; every mutation happens on a
// document handed in by the caller inside its conditional write.
package streak

import (
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// Config holds the streak rules.
type Config struct {
	// XPPerFreeze awards one freeze for every full multiple crossed.
	XPPerFreeze int
	// MaxFreezes caps stored freezes. 0 means no cap.
	MaxFreezes int

	WeeklyBonusEnabled bool
	BonusMultiplier    float64
	// BonusWeeks is how many whole weeks after the activating week the bonus lasts.
	BonusWeeks int
}

// DefaultConfig returns the default streak rules.
func DefaultConfig() Config {
	return Config{
		XPPerFreeze:        500,
		MaxFreezes:         0,
		WeeklyBonusEnabled: true,
		BonusMultiplier:    1.5,
		BonusWeeks:         1,
	}
}

// Engine applies streak rules on a streak-day calendar.
type Engine struct {
	cfg Config
	cal *timeutil.Calendar
}

// NewEngine creates an Engine.
func NewEngine(cfg Config, cal *timeutil.Calendar) *Engine {
	if cfg.BonusWeeks < 0 {
		cfg.BonusWeeks = 0
	}
	return &Engine{cfg: cfg, cal: cal}
}

// Calendar returns the streak-day calendar.
func (e *Engine) Calendar() *timeutil.Calendar { return e.cal }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// StreakDay maps an instant to its streak day.
func (e *Engine) StreakDay(t time.Time) timeutil.Day { return e.cal.StreakDay(t) }

// ══════════════════════════════════════════════════════════════════════════════
// MISSED DAYS
// ══════════════════════════════════════════════════════════════════════════════

// Resolution is what ResolveMissedDays did.
type Resolution int

const (
	ResolutionNone Resolution = iota
	ResolutionFrozen
	ResolutionBroken
)

func (r Resolution) String() string {
	switch r {
	case ResolutionFrozen:
		return "frozen"
	case ResolutionBroken:
		return "broken"
	default:
		return "none"
	}
}

// MissedDays returns how many whole streak days between the last activity
// and today went without activity.
func MissedDays(s stats.Streak, today timeutil.Day) int {
	if s.LastActivityDay.IsZero() {
		return 0
	}
	gap := today.Since(s.LastActivityDay) - 1
	if gap < 0 {
		return 0
	}
	return gap
}

// ResolveMissedDays is the single rule shared by the live activity path and
// the daily maintenance job. A streak with exactly one unprotected missed day
// consumes one freeze and has its last activity day moved onto the covered
// day, so a second run sees nothing to do. Any other gap breaks the streak.
//
// One call spends at most one freeze. A nightly run moves the last activity
// day forward, so consecutive runs can carry a streak across several missed
// days at one freeze per night. A single call that already sees two or more
// missed days breaks the streak whatever the stored freezes.
func (e *Engine) ResolveMissedDays(s *stats.Streak, today timeutil.Day) Resolution {
	if s.CurrentCount == 0 {
		return ResolutionNone
	}
	missed := MissedDays(*s, today)
	if missed == 0 {
		return ResolutionNone
	}

	if missed == 1 && s.FreezesAvailable > 0 {
		covered := today.AddDays(-1)
		s.FreezesAvailable--
		s.FreezesUsed++
		s.LastFreezeDay = covered
		s.LastActivityDay = covered
		return ResolutionFrozen
	}

	s.CurrentCount = 0
	return ResolutionBroken
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// Outcome describes the effect of one activity on the streak.
type Outcome struct {
	Day           timeutil.Day
	Counted       bool // a new streak day was recorded
	FreezeUsed    bool
	Broken        bool // the break happened during this call
	DaysMissed    int
	PreviousCount int
	Count         int
	Longest       int
}

// OnActivity records activity at now. Activity on an already counted day,
// or on an earlier day than the last one counted, leaves the streak as is.
func (e *Engine) OnActivity(s *stats.Streak, now time.Time) Outcome {
	today := e.cal.StreakDay(now)
	out := Outcome{Day: today, PreviousCount: s.CurrentCount}

	if !s.LastActivityDay.IsZero() && today <= s.LastActivityDay {
		out.Count = s.CurrentCount
		out.Longest = s.LongestStreak
		return out
	}

	out.DaysMissed = MissedDays(*s, today)
	switch e.ResolveMissedDays(s, today) {
	case ResolutionFrozen:
		out.FreezeUsed = true
	case ResolutionBroken:
		out.Broken = true
	}

	if s.CurrentCount == 0 {
		s.CurrentCount = 1
	} else {
		s.CurrentCount++
	}
	s.LastActivityDay = today
	if s.CurrentCount > s.LongestStreak {
		s.LongestStreak = s.CurrentCount
	}

	out.Counted = true
	out.Count = s.CurrentCount
	out.Longest = s.LongestStreak
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// FREEZES
// ══════════════════════════════════════════════════════════════════════════════

// AwardFreezes grants one freeze per XPPerFreeze threshold crossed between
// oldXP and newXP and returns how many were granted.
func (e *Engine) AwardFreezes(s *stats.Streak, oldXP, newXP int) int {
	per := e.cfg.XPPerFreeze
	if per <= 0 || newXP <= oldXP {
		return 0
	}
	n := newXP/per - oldXP/per
	if n <= 0 {
		return 0
	}
	if e.cfg.MaxFreezes > 0 {
		room := e.cfg.MaxFreezes - s.FreezesAvailable
		if room <= 0 {
			return 0
		}
		if n > room {
			n = room
		}
	}
	s.FreezesAvailable += n
	return n
}
