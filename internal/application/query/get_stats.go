// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/streak"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/xp"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Returns the gamification snapshot of one user. Users without a document
// get the default snapshot; nothing is persisted.
// ══════════════════════════════════════════════════════════════════════════════

// GetStatsQuery contains the parameters of the stats query.
type GetStatsQuery struct {
	UserID string
}

// Validate validates the query.
func (q GetStatsQuery) Validate() error {
	_, err := shared.NewUserID(q.UserID)
	return err
}

// StatsDTO is the user-facing stats snapshot.
type StatsDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Identity
	// ─────────────────────────────────────────────────────────────────────────

	UserID string `json:"user_id"`

	// Exists is false when the user has never recorded an activity.
	Exists bool `json:"exists"`

	// ─────────────────────────────────────────────────────────────────────────
	// XP and level
	// ─────────────────────────────────────────────────────────────────────────

	TotalXP       int     `json:"total_xp"`
	Level         int     `json:"current_level"`
	LevelTitle    string  `json:"level_title"`
	XPToNextLevel int     `json:"xp_to_next_level"`
	LevelProgress float64 `json:"level_progress"`

	// ─────────────────────────────────────────────────────────────────────────
	// Activity
	// ─────────────────────────────────────────────────────────────────────────

	Activities      map[stats.Category]int `json:"activities"`
	TotalActivities int                    `json:"total_activities"`

	// ─────────────────────────────────────────────────────────────────────────
	// Streak
	// ─────────────────────────────────────────────────────────────────────────

	StreakState      stats.State `json:"streak_state"`
	StreakCount      int         `json:"streak_count"`
	LongestStreak    int         `json:"longest_streak"`
	LastActivityDay  string      `json:"last_activity_date,omitempty"`
	FreezesAvailable int         `json:"freezes_available"`
	FreezesUsed      int         `json:"freezes_used"`

	// StreakDeadline is when the streak passes its last day without a
	// freeze. Nil when there is no live streak.
	StreakDeadline *time.Time `json:"streak_deadline,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Weekly consistency
	// ─────────────────────────────────────────────────────────────────────────

	WeekStart       string                  `json:"week_start"`
	Weekly          stats.WeeklyConsistency `json:"weekly_consistency"`
	BonusActive     bool                    `json:"bonus_active"`
	BonusMultiplier float64                 `json:"bonus_multiplier"`
	BonusUntil      string                  `json:"bonus_until,omitempty"`

	JoinedAt  time.Time `json:"joined_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// GetStatsHandler handles GetStatsQuery.
type GetStatsHandler struct {
	repo   stats.Repository
	xp     *xp.Engine
	streak *streak.Engine
	clock  func() time.Time
}

// NewGetStatsHandler creates a new GetStatsHandler.
func NewGetStatsHandler(repo stats.Repository, xpEngine *xp.Engine, streakEngine *streak.Engine, clock func() time.Time) *GetStatsHandler {
	if clock == nil {
		clock = time.Now
	}
	return &GetStatsHandler{repo: repo, xp: xpEngine, streak: streakEngine, clock: clock}
}

// Handle executes the query.
func (h *GetStatsHandler) Handle(ctx context.Context, q GetStatsQuery) (*StatsDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s, err := h.repo.Get(ctx, q.UserID)
	exists := true
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		exists = false
		s = stats.New(q.UserID, time.Time{})
	default:
		return nil, err
	}

	today := h.streak.StreakDay(h.clock())

	// Present the week and bonus as they stand today without writing back.
	view := s.Clone()
	h.streak.NormalizeWeek(&view.Streak, today)

	progress := h.xp.Progress(view.TotalXP)
	dto := &StatsDTO{
		UserID:           view.UserID,
		Exists:           exists,
		TotalXP:          view.TotalXP,
		Level:            progress.Level,
		LevelTitle:       progress.Title,
		XPToNextLevel:    progress.ToNext,
		LevelProgress:    progress.Fraction,
		Activities:       make(map[stats.Category]int, len(stats.Categories)),
		TotalActivities:  view.TotalActivities(),
		StreakState:      view.Streak.State(today),
		StreakCount:      view.Streak.CurrentCount,
		LongestStreak:    view.Streak.LongestStreak,
		LastActivityDay:  view.Streak.LastActivityDay.String(),
		FreezesAvailable: view.Streak.FreezesAvailable,
		FreezesUsed:      view.Streak.FreezesUsed,
		WeekStart:        view.Streak.WeekStart.String(),
		Weekly:           view.Streak.Weekly,
		BonusActive:      view.Streak.BonusInEffect(today),
		BonusUntil:       view.Streak.BonusUntil.String(),
		JoinedAt:         view.JoinedAt,
		UpdatedAt:        view.UpdatedAt,
	}
	if dto.BonusActive {
		dto.BonusMultiplier = h.xp.Multiplier(view.Streak, today)
	} else {
		dto.BonusUntil = ""
	}
	for _, c := range stats.Categories {
		dto.Activities[c] = view.Count(c)
	}

	cal := h.streak.Calendar()
	switch dto.StreakState {
	case stats.StateActive, stats.StateFrozenToday:
		deadline := cal.DayStart(view.Streak.LastActivityDay.AddDays(2))
		dto.StreakDeadline = &deadline
	case stats.StateFreezePending:
		// The freeze covers yesterday, so acting today keeps the streak.
		deadline := cal.DayStart(today.AddDays(1))
		dto.StreakDeadline = &deadline
	}
	return dto, nil
}
