package badge

import (
	"fmt"
	"sort"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// CriterionKind enumerates the measurable badge conditions.
type CriterionKind uint8

const (
	KindTotalXP CriterionKind = iota + 1
	KindLevel
	KindStreakDays
	KindLongestStreak
	KindQuizzesCompleted
	KindFlashcardsReviewed
	KindEvaluationsSubmitted
	KindGuidesCompleted
	KindTotalActivities
	KindDaysSinceJoin
	KindFreezeRebuild

	// Recognized but not measurable from the stats document.
	KindTimeOfDay
	KindSessionMinutes
	KindMultiWeekBonus

	kindCount
)

var kindNames = [kindCount]string{
	KindTotalXP:              "total_xp",
	KindLevel:                "level",
	KindStreakDays:           "streak_days",
	KindLongestStreak:        "longest_streak",
	KindQuizzesCompleted:     "quizzes_completed",
	KindFlashcardsReviewed:   "flashcards_reviewed",
	KindEvaluationsSubmitted: "evaluations_submitted",
	KindGuidesCompleted:      "guides_completed",
	KindTotalActivities:      "total_activities",
	KindDaysSinceJoin:        "days_since_join",
	KindFreezeRebuild:        "freeze_rebuild",
	KindTimeOfDay:            "time_of_day",
	KindSessionMinutes:       "session_minutes",
	KindMultiWeekBonus:       "multi_week_bonus",
}

// Input is what evaluators measure.
type Input struct {
	Stats *stats.UserStats
	Now   time.Time

	// Calendar counts days since join in streak days. Nil counts whole
	// 24 hour periods.
	Calendar *timeutil.Calendar
}

type evaluator func(in Input) int

// evaluators binds every measurable kind to its measurement. A nil entry
// means the kind is not implemented.
var evaluators = [kindCount]evaluator{
	KindTotalXP:              func(in Input) int { return in.Stats.TotalXP },
	KindLevel:                func(in Input) int { return in.Stats.Level },
	KindStreakDays:           func(in Input) int { return in.Stats.Streak.CurrentCount },
	KindLongestStreak:        func(in Input) int { return in.Stats.Streak.LongestStreak },
	KindQuizzesCompleted:     func(in Input) int { return in.Stats.Count(stats.CategoryQuiz) },
	KindFlashcardsReviewed:   func(in Input) int { return in.Stats.Count(stats.CategoryFlashcard) },
	KindEvaluationsSubmitted: func(in Input) int { return in.Stats.Count(stats.CategoryEvaluation) },
	KindGuidesCompleted:      func(in Input) int { return in.Stats.Count(stats.CategoryGuide) },
	KindTotalActivities:      func(in Input) int { return in.Stats.TotalActivities() },
	KindDaysSinceJoin:        measureDaysSinceJoin,
	KindFreezeRebuild:        measureFreezeRebuild,
}

func measureDaysSinceJoin(in Input) int {
	if in.Stats.JoinedAt.IsZero() || in.Now.Before(in.Stats.JoinedAt) {
		return 0
	}
	if in.Calendar != nil {
		return in.Calendar.DaysSince(in.Stats.JoinedAt, in.Now)
	}
	return int(in.Now.Sub(in.Stats.JoinedAt) / (24 * time.Hour))
}

// measureFreezeRebuild is the current streak length once at least one
// freeze has been spent, otherwise 0.
func measureFreezeRebuild(in Input) int {
	if in.Stats.Streak.FreezesUsed == 0 {
		return 0
	}
	return in.Stats.Streak.CurrentCount
}

// ParseKind maps a criteria key to its kind.
func ParseKind(key string) (CriterionKind, error) {
	for k := KindTotalXP; k < kindCount; k++ {
		if kindNames[k] == key {
			return k, nil
		}
	}
	return 0, shared.WrapError("badge", "ParseKind", shared.ErrInvalidInput,
		fmt.Sprintf("unknown criteria key %q", key), shared.ErrUnknownCriteria)
}

func (k CriterionKind) String() string {
	if k == 0 || k >= kindCount {
		return fmt.Sprintf("CriterionKind(%d)", k)
	}
	return kindNames[k]
}

// Implemented reports whether k has an evaluator.
func (k CriterionKind) Implemented() bool {
	return k > 0 && k < kindCount && evaluators[k] != nil
}

// Criterion is one threshold condition.
type Criterion struct {
	Kind      CriterionKind
	Threshold int
}

// Value measures the criterion's quantity. Unimplemented kinds measure 0.
func (c Criterion) Value(in Input) int {
	if !c.Kind.Implemented() {
		return 0
	}
	return evaluators[c.Kind](in)
}

// Times returns how many whole multiples of the threshold are met.
// A threshold of 0 or less is met exactly once.
func (c Criterion) Times(in Input) int {
	if !c.Kind.Implemented() {
		return 0
	}
	if c.Threshold <= 0 {
		return 1
	}
	return c.Value(in) / c.Threshold
}

// ParseCriteria converts stored criteria into typed criteria sorted by kind.
func ParseCriteria(raw map[string]int) ([]Criterion, error) {
	out := make([]Criterion, 0, len(raw))
	for key, threshold := range raw {
		kind, err := ParseKind(key)
		if err != nil {
			return nil, err
		}
		out = append(out, Criterion{Kind: kind, Threshold: threshold})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

// TimesSatisfied applies AND semantics over criteria: the result is the
// minimum multiple met across all of them, 0 if any is unmet.
// An empty criteria set is never satisfied.
func TimesSatisfied(criteria []Criterion, in Input) int {
	if len(criteria) == 0 {
		return 0
	}
	times := -1
	for _, c := range criteria {
		n := c.Times(in)
		if n <= 0 {
			return 0
		}
		if times < 0 || n < times {
			times = n
		}
	}
	return times
}
