package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/config"
	"github.com/TEJ42000/ALLMS-sub004/internal/application/command"
	"github.com/TEJ42000/ALLMS-sub004/internal/application/query"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/activity"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/scheduler/jobs"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("GAMIFICATION_BADGE_SEED_FILE", "../../config/badges.yaml")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryEndToEnd(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, memoryConfig(t), nil)
	require.NoError(t, err)

	assert.Nil(t, app.Redis)
	assert.Nil(t, app.DB)

	res, err := app.RecordActivity.Handle(ctx, command.RecordActivityCommand{
		UserID:  "student-1",
		Type:    activity.TypeGuideCompleted,
		Payload: map[string]any{"guide_id": "intro"},
	})
	require.NoError(t, err)
	assert.True(t, res.Recognized)
	assert.Positive(t, res.XPAwarded)
	assert.Equal(t, 1, res.StreakCount)
	require.Len(t, res.BadgesEarned, 1)
	assert.Equal(t, "first_steps", res.BadgesEarned[0].Definition.ID)

	snap, err := app.GetStats.Handle(ctx, query.GetStatsQuery{UserID: "student-1"})
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, res.NewTotalXP, snap.TotalXP)

	list, err := app.ListBadges.Handle(ctx, query.ListBadgesQuery{UserID: "student-1"})
	require.NoError(t, err)
	assert.Len(t, list.Earned, 1)
	assert.Len(t, list.Catalog, 12)

	all, err := app.ListBadges.Handle(ctx, query.ListBadgesQuery{UserID: "student-1", IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all.Catalog, 14)

	summary, err := app.Maintenance.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, jobs.StateComplete, summary.State)
	assert.Equal(t, 1, summary.UsersScanned)
	assert.Equal(t, 0, summary.StreaksBroken)

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, app.Close(closeCtx))

	counts := app.Audit.Counts()
	assert.Equal(t, int64(1), counts[string(shared.EventXPGained)])
	assert.Equal(t, int64(1), counts[string(shared.EventBadgeEarned)])
	assert.Equal(t, int64(1), counts[string(shared.EventMaintenanceCompleted)])
}

func TestNew_MissingSeedFileFails(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Gamification.BadgeSeedFile = "does-not-exist.yaml"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := memoryConfig(t)
	assert.NotNil(t, NewLogger(cfg))
}
