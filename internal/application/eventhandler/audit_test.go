package eventhandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

func TestAuditHandler(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	h := NewAuditHandler(logger.FromZap(zap.New(core)))
	at := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)

	require.NoError(t, h.Handle(shared.XPGainedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventXPGained, "u1", at),
		UserID:    "u1", Amount: 20, NewTotal: 20,
	}))
	require.NoError(t, h.Handle(shared.StreakBrokenEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStreakBroken, "u1", at),
		UserID:    "u1", PreviousStreak: 4, DaysMissed: 2, Source: "maintenance",
	}))
	require.NoError(t, h.Handle(shared.XPGainedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventXPGained, "u1", at),
		UserID:    "u1", Amount: 5, NewTotal: 25,
	}))

	assert.Equal(t, map[string]int64{
		string(shared.EventXPGained):     2,
		string(shared.EventStreakBroken): 1,
	}, h.Counts())

	broken := logs.FilterField(zap.String("event_type", string(shared.EventStreakBroken))).All()
	require.Len(t, broken, 1)
	assert.Equal(t, zap.InfoLevel, broken[0].Level)
	assert.Equal(t, "maintenance", broken[0].ContextMap()["source"])
}
