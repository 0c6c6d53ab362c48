// Package stats holds the per-user gamification document and the
// optimistic-concurrency contract used to mutate it.
package stats

import (
	"time"

	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORIES
// ══════════════════════════════════════════════════════════════════════════════

// Category groups activity types for counters and weekly consistency.
type Category string

const (
	CategoryQuiz       Category = "quiz"
	CategoryFlashcard  Category = "flashcard"
	CategoryEvaluation Category = "evaluation"
	CategoryGuide      Category = "guide"
)

// Categories lists every tracked category in display order.
var Categories = []Category{CategoryQuiz, CategoryFlashcard, CategoryEvaluation, CategoryGuide}

// IsValid reports whether c is a tracked category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryQuiz, CategoryFlashcard, CategoryEvaluation, CategoryGuide:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY CONSISTENCY
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyConsistency records which categories saw activity in the current week.
type WeeklyConsistency struct {
	Quiz       bool `json:"quiz"`
	Flashcard  bool `json:"flashcard"`
	Evaluation bool `json:"evaluation"`
	Guide      bool `json:"guide"`
}

// Mark sets the flag for c and reports whether it changed.
func (w *WeeklyConsistency) Mark(c Category) bool {
	var flag *bool
	switch c {
	case CategoryQuiz:
		flag = &w.Quiz
	case CategoryFlashcard:
		flag = &w.Flashcard
	case CategoryEvaluation:
		flag = &w.Evaluation
	case CategoryGuide:
		flag = &w.Guide
	default:
		return false
	}
	if *flag {
		return false
	}
	*flag = true
	return true
}

// Has reports whether c is marked.
func (w WeeklyConsistency) Has(c Category) bool {
	switch c {
	case CategoryQuiz:
		return w.Quiz
	case CategoryFlashcard:
		return w.Flashcard
	case CategoryEvaluation:
		return w.Evaluation
	case CategoryGuide:
		return w.Guide
	}
	return false
}

// Complete reports whether every category is marked.
func (w WeeklyConsistency) Complete() bool {
	return w.Quiz && w.Flashcard && w.Evaluation && w.Guide
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK
// ══════════════════════════════════════════════════════════════════════════════

// State is the derived, user-facing streak state.
type State string

const (
	StateNoStreak    State = "no_streak"
	StateActive      State = "active"
	StateFrozenToday State = "frozen_today"
	StateBroken      State = "broken"

	// StateFreezePending is one missed day that a stored freeze will cover
	// on the next activity or maintenance run.
	StateFreezePending State = "freeze_pending"
)

// Streak is the streak sub-document. Mutations go through the streak engine.
type Streak struct {
	CurrentCount     int          `json:"current_count"`
	LongestStreak    int          `json:"longest_streak"`
	LastActivityDay  timeutil.Day `json:"last_activity_date"`
	FreezesAvailable int          `json:"freezes_available"`
	FreezesUsed      int          `json:"freezes_used"`
	LastFreezeDay    timeutil.Day `json:"last_freeze_date"`

	Weekly          WeeklyConsistency `json:"weekly_consistency"`
	WeekStart       timeutil.Day      `json:"week_start"`
	BonusActive     bool              `json:"bonus_active"`
	BonusMultiplier float64           `json:"bonus_multiplier"`
	BonusUntil      timeutil.Day      `json:"bonus_until"`
}

// State derives the streak state as seen on the given streak day.
func (s Streak) State(today timeutil.Day) State {
	switch {
	case s.LastActivityDay.IsZero():
		return StateNoStreak
	case s.CurrentCount == 0:
		return StateBroken
	case today.Since(s.LastActivityDay) == 2 && s.FreezesAvailable > 0:
		return StateFreezePending
	case today.Since(s.LastActivityDay) > 1:
		// Missed days no freeze can cover, not yet resolved.
		return StateBroken
	case !s.LastFreezeDay.IsZero() && s.LastFreezeDay == s.LastActivityDay:
		return StateFrozenToday
	default:
		return StateActive
	}
}

// BonusInEffect reports whether the weekly multiplier applies on day d.
func (s Streak) BonusInEffect(d timeutil.Day) bool {
	return s.BonusActive && d < s.BonusUntil
}

// ══════════════════════════════════════════════════════════════════════════════
// USER STATS
// ══════════════════════════════════════════════════════════════════════════════

// UserStats is the single gamification document per user.
type UserStats struct {
	UserID           string           `json:"user_id"`
	TotalXP          int              `json:"total_xp"`
	Level            int              `json:"current_level"`
	LevelTitle       string           `json:"level_title"`
	ActivityCounters map[Category]int `json:"activities"`
	Streak           Streak           `json:"streak"`
	JoinedAt         time.Time        `json:"joined_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	// Version is the optimistic-concurrency token. 0 means not yet stored.
	Version int64 `json:"version"`
}

// New creates an empty, unsaved document.
func New(userID string, now time.Time) *UserStats {
	return &UserStats{
		UserID:           userID,
		Level:            1,
		ActivityCounters: make(map[Category]int, len(Categories)),
		JoinedAt:         now,
		UpdatedAt:        now,
	}
}

// Count returns the counter for c.
func (s *UserStats) Count(c Category) int {
	return s.ActivityCounters[c]
}

// Increment bumps the counter for c.
func (s *UserStats) Increment(c Category) {
	if s.ActivityCounters == nil {
		s.ActivityCounters = make(map[Category]int, len(Categories))
	}
	s.ActivityCounters[c]++
}

// TotalActivities sums every category counter.
func (s *UserStats) TotalActivities() int {
	total := 0
	for _, n := range s.ActivityCounters {
		total += n
	}
	return total
}

// Clone returns a deep copy.
func (s *UserStats) Clone() *UserStats {
	if s == nil {
		return nil
	}
	c := *s
	c.ActivityCounters = make(map[Category]int, len(s.ActivityCounters))
	for k, v := range s.ActivityCounters {
		c.ActivityCounters[k] = v
	}
	return &c
}
