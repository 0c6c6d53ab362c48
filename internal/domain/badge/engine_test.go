package badge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/persistence/memory"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

var now = time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo badge.Repository, defs ...badge.Definition) {
	t.Helper()
	for _, d := range defs {
		require.NoError(t, repo.UpsertDefinition(context.Background(), d))
	}
}

func userWith(xp, quizzes int) *stats.UserStats {
	s := stats.New("u1", now.AddDate(0, 0, -10))
	s.TotalXP = xp
	s.ActivityCounters[stats.CategoryQuiz] = quizzes
	return s
}

func TestCheckAndUnlock_UnlocksOnceWhenAllCriteriaMet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewBadgeStore()
	seed(t, repo,
		badge.Definition{ID: "quiz_master", Name: "Quiz Master", Active: true,
			Criteria: map[string]int{"quizzes_completed": 10, "total_xp": 500}},
		badge.Definition{ID: "rich", Name: "Rich", Active: true,
			Criteria: map[string]int{"total_xp": 10000}},
	)
	engine := badge.NewEngine(repo, logger.Nop())

	got, err := engine.CheckAndUnlock(ctx, "u1", userWith(600, 10), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "quiz_master", got[0].Definition.ID)
	assert.False(t, got[0].Repeat)

	again, err := engine.CheckAndUnlock(ctx, "u1", userWith(700, 11), now)
	require.NoError(t, err)
	assert.Empty(t, again)

	owned, err := repo.ListUserBadges(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, 1, owned[0].TimesEarned)
}

func TestCheckAndUnlock_PartialCriteriaDoesNotUnlock(t *testing.T) {
	repo := memory.NewBadgeStore()
	seed(t, repo, badge.Definition{ID: "both", Active: true,
		Criteria: map[string]int{"quizzes_completed": 10, "total_xp": 500}})

	got, err := badge.NewEngine(repo, logger.Nop()).CheckAndUnlock(context.Background(), "u1", userWith(600, 9), now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheckAndUnlock_SkipsUnknownAndInactive(t *testing.T) {
	repo := memory.NewBadgeStore()
	seed(t, repo,
		badge.Definition{ID: "unknown", Active: true, Criteria: map[string]int{"karma": 1}},
		badge.Definition{ID: "night_owl", Active: true, Criteria: map[string]int{"time_of_day": 23}},
		badge.Definition{ID: "retired", Active: false, Criteria: map[string]int{"total_xp": 1}},
		badge.Definition{ID: "starter", Active: true, Criteria: map[string]int{"total_xp": 1}},
	)

	got, err := badge.NewEngine(repo, logger.Nop()).CheckAndUnlock(context.Background(), "u1", userWith(50, 0), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "starter", got[0].Definition.ID)
}

func TestCheckAndUnlock_RepeatableRaisesTimesEarned(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewBadgeStore()
	seed(t, repo, badge.Definition{ID: "grinder", Active: true, Repeatable: true,
		Criteria: map[string]int{"quizzes_completed": 5}})
	engine := badge.NewEngine(repo, logger.Nop())

	got, err := engine.CheckAndUnlock(ctx, "u1", userWith(0, 5), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].TimesEarned)

	got, err = engine.CheckAndUnlock(ctx, "u1", userWith(0, 12), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Repeat)
	assert.Equal(t, 2, got[0].TimesEarned)

	// Same stats again: nothing raised.
	got, err = engine.CheckAndUnlock(ctx, "u1", userWith(0, 12), now)
	require.NoError(t, err)
	assert.Empty(t, got)

	ub, err := repo.GetUserBadge(ctx, "u1", "grinder")
	require.NoError(t, err)
	assert.Equal(t, 2, ub.TimesEarned)
}

func TestCheckAndUnlock_ConcurrentEvaluationsUnlockExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewBadgeStore()
	seed(t, repo, badge.Definition{ID: "first_steps", Active: true,
		Criteria: map[string]int{"total_xp": 10}})
	engine := badge.NewEngine(repo, logger.Nop())

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		unlocks int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.CheckAndUnlock(ctx, "u1", userWith(100, 0), now)
			assert.NoError(t, err)
			mu.Lock()
			unlocks += len(got)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, unlocks)
	owned, err := repo.ListUserBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

type failingCreateRepo struct {
	*memory.BadgeStore
	failFor string
}

func (r failingCreateRepo) CreateUserBadge(ctx context.Context, ub badge.UserBadge) (bool, error) {
	if ub.BadgeID == r.failFor {
		return false, errors.New("write refused")
	}
	return r.BadgeStore.CreateUserBadge(ctx, ub)
}

func TestCheckAndUnlock_StoreFailureOnOneBadgeDoesNotStopOthers(t *testing.T) {
	store := memory.NewBadgeStore()
	seed(t, store,
		badge.Definition{ID: "a", Active: true, Criteria: map[string]int{"total_xp": 1}},
		badge.Definition{ID: "b", Active: true, Criteria: map[string]int{"total_xp": 1}},
	)
	repo := failingCreateRepo{BadgeStore: store, failFor: "a"}

	got, err := badge.NewEngine(repo, logger.Nop()).CheckAndUnlock(context.Background(), "u1", userWith(5, 0), now)
	assert.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Definition.ID)
}
