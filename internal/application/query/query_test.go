package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/internal/application/query"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/streak"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/xp"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/persistence/memory"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// Wednesday.
var now = time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)

func newStatsHandler(t *testing.T, repo stats.Repository) *query.GetStatsHandler {
	t.Helper()
	xpEngine, err := xp.NewEngine(xp.DefaultConfig())
	require.NoError(t, err)
	cal := timeutil.MustCalendar(time.UTC, 4, time.Monday)
	return query.NewGetStatsHandler(repo, xpEngine, streak.NewEngine(streak.DefaultConfig(), cal),
		func() time.Time { return now })
}

func TestGetStats_UnknownUserGetsDefaults(t *testing.T) {
	repo := memory.NewStatsStore()
	h := newStatsHandler(t, repo)

	dto, err := h.Handle(context.Background(), query.GetStatsQuery{UserID: "nobody"})
	require.NoError(t, err)

	assert.False(t, dto.Exists)
	assert.Equal(t, 1, dto.Level)
	assert.Equal(t, "Novice", dto.LevelTitle)
	assert.Equal(t, 100, dto.XPToNextLevel)
	assert.Equal(t, stats.StateNoStreak, dto.StreakState)
	assert.Len(t, dto.Activities, len(stats.Categories))
	assert.Zero(t, repo.Len(), "reads never create documents")
}

func TestGetStats_ReportsStoredDocument(t *testing.T) {
	repo := memory.NewStatsStore()
	s := stats.New("u1", now.AddDate(0, -1, 0))
	s.TotalXP = 150
	s.Level, s.LevelTitle = 2, "Apprentice"
	s.ActivityCounters[stats.CategoryQuiz] = 4
	s.Streak.CurrentCount = 3
	s.Streak.LongestStreak = 7
	s.Streak.LastActivityDay = timeutil.DayOf(2024, time.May, 7)
	s.Streak.LastFreezeDay = timeutil.DayOf(2024, time.May, 7)
	s.Streak.WeekStart = timeutil.DayOf(2024, time.May, 6)
	s.Streak.Weekly.Quiz = true
	s.Streak.BonusActive = true
	s.Streak.BonusMultiplier = 1.5
	s.Streak.BonusUntil = timeutil.DayOf(2024, time.May, 13)
	require.NoError(t, repo.Save(context.Background(), s))

	dto, err := newStatsHandler(t, repo).Handle(context.Background(), query.GetStatsQuery{UserID: "u1"})
	require.NoError(t, err)

	assert.True(t, dto.Exists)
	assert.Equal(t, 150, dto.TotalXP)
	assert.Equal(t, 150, dto.XPToNextLevel)
	assert.Equal(t, stats.StateFrozenToday, dto.StreakState)
	assert.Equal(t, 3, dto.StreakCount)
	assert.Equal(t, "2024-05-07", dto.LastActivityDay)
	assert.Equal(t, 4, dto.TotalActivities)
	assert.True(t, dto.Weekly.Quiz)
	assert.True(t, dto.BonusActive)
	assert.InDelta(t, 1.5, dto.BonusMultiplier, 1e-9)
	assert.Equal(t, "2024-05-13", dto.BonusUntil)
	require.NotNil(t, dto.StreakDeadline)
	assert.Equal(t, time.Date(2024, 5, 9, 4, 0, 0, 0, time.UTC), *dto.StreakDeadline)
}

func TestGetStats_StreakDeadlineFollowsCutover(t *testing.T) {
	repo := memory.NewStatsStore()
	s := stats.New("u1", now)
	s.Streak.CurrentCount = 2
	s.Streak.LastActivityDay = timeutil.DayOf(2024, time.May, 8)
	require.NoError(t, repo.Save(context.Background(), s))

	dto, err := newStatsHandler(t, repo).Handle(context.Background(), query.GetStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, stats.StateActive, dto.StreakState)
	require.NotNil(t, dto.StreakDeadline)
	assert.Equal(t, time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC), *dto.StreakDeadline,
		"acting any time tomorrow keeps the streak")

	unknown, err := newStatsHandler(t, repo).Handle(context.Background(), query.GetStatsQuery{UserID: "nobody"})
	require.NoError(t, err)
	assert.Nil(t, unknown.StreakDeadline)
}

func TestGetStats_UnresolvedGapReadsAsBroken(t *testing.T) {
	repo := memory.NewStatsStore()
	s := stats.New("u1", now)
	s.Streak.CurrentCount = 9
	s.Streak.LastActivityDay = timeutil.DayOf(2024, time.May, 5)
	s.Streak.WeekStart = timeutil.DayOf(2024, time.April, 29)
	s.Streak.Weekly.Guide = true
	require.NoError(t, repo.Save(context.Background(), s))

	dto, err := newStatsHandler(t, repo).Handle(context.Background(), query.GetStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, stats.StateBroken, dto.StreakState)
	assert.Equal(t, 9, dto.StreakCount, "the snapshot reports the stored count")
	assert.Nil(t, dto.StreakDeadline)
	assert.False(t, dto.Weekly.Guide, "a past week shows as cleared")

	stored, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 9, stored.Streak.CurrentCount)
}

func TestGetStats_PendingFreezeKeepsStreak(t *testing.T) {
	repo := memory.NewStatsStore()
	s := stats.New("u1", now)
	s.Streak.CurrentCount = 5
	s.Streak.LongestStreak = 5
	s.Streak.FreezesAvailable = 2
	s.Streak.LastActivityDay = timeutil.DayOf(2024, time.May, 6)
	require.NoError(t, repo.Save(context.Background(), s))

	dto, err := newStatsHandler(t, repo).Handle(context.Background(), query.GetStatsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, stats.StateFreezePending, dto.StreakState)
	assert.Equal(t, 5, dto.StreakCount)
	assert.Equal(t, 2, dto.FreezesAvailable)
	require.NotNil(t, dto.StreakDeadline)
	assert.Equal(t, time.Date(2024, 5, 9, 4, 0, 0, 0, time.UTC), *dto.StreakDeadline)
}

func TestGetStats_RejectsEmptyUser(t *testing.T) {
	_, err := newStatsHandler(t, memory.NewStatsStore()).Handle(context.Background(), query.GetStatsQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestListBadges(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewBadgeStore()
	for _, d := range []badge.Definition{
		{ID: "first_steps", Name: "First Steps", Points: 10, Active: true, Criteria: map[string]int{"total_activities": 1}},
		{ID: "marathon", Name: "Marathon", Points: 50, Active: true, Criteria: map[string]int{"streak_days": 30}},
		{ID: "retired", Name: "Retired", Points: 5, Active: false, Criteria: map[string]int{"level": 2}},
		{ID: "night_owl", Name: "Night Owl", Active: false, Criteria: map[string]int{"time_of_day": 23}},
		{ID: "deep_focus", Name: "Deep Focus", Active: true, Criteria: map[string]int{"session_minutes": 60}},
	} {
		require.NoError(t, repo.UpsertDefinition(ctx, d))
	}
	_, err := repo.CreateUserBadge(ctx, badge.UserBadge{UserID: "u1", BadgeID: "first_steps", EarnedAt: now, TimesEarned: 1})
	require.NoError(t, err)
	_, err = repo.CreateUserBadge(ctx, badge.UserBadge{UserID: "u1", BadgeID: "retired", EarnedAt: now.Add(-time.Hour), TimesEarned: 2})
	require.NoError(t, err)

	h := query.NewListBadgesHandler(repo)

	got, err := h.Handle(ctx, query.ListBadgesQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got.Earned, 2)
	assert.Equal(t, "retired", got.Earned[0].ID)
	assert.Equal(t, "first_steps", got.Earned[1].ID)
	assert.Equal(t, 20, got.TotalPoints)
	require.Len(t, got.Catalog, 2)
	assert.True(t, got.Catalog[0].Earned)
	assert.False(t, got.Catalog[1].Earned)
	for _, b := range got.Catalog {
		assert.NotEqual(t, "deep_focus", b.ID, "unmeasurable criteria stay out of the default catalog")
	}

	all, err := h.Handle(ctx, query.ListBadgesQuery{UserID: "u1", IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all.Catalog, 5)
	for _, b := range all.Catalog {
		if b.ID == "deep_focus" {
			assert.False(t, b.Active)
		}
	}
}
