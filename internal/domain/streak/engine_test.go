package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// 2024-05-06 is a Monday.
var monday = timeutil.DayOf(2024, time.May, 6)

func newEngine(t *testing.T, mutate ...func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	cal, err := timeutil.NewCalendar(time.UTC, 4, time.Monday)
	require.NoError(t, err)
	return NewEngine(cfg, cal)
}

// at returns noon UTC on the given day.
func at(d timeutil.Day) time.Time {
	return d.Time().Add(12 * time.Hour)
}

func TestOnActivity_FirstActivityStartsStreak(t *testing.T) {
	e := newEngine(t)
	var s stats.Streak

	out := e.OnActivity(&s, at(monday))

	assert.True(t, out.Counted)
	assert.False(t, out.Broken)
	assert.Equal(t, 1, s.CurrentCount)
	assert.Equal(t, 1, s.LongestStreak)
	assert.Equal(t, monday, s.LastActivityDay)
}

func TestOnActivity_SameDayIsIdempotent(t *testing.T) {
	e := newEngine(t)
	var s stats.Streak

	e.OnActivity(&s, at(monday))
	before := s
	out := e.OnActivity(&s, at(monday).Add(3*time.Hour))

	assert.False(t, out.Counted)
	assert.Equal(t, before, s)
}

func TestOnActivity_ConsecutiveDaysIncrement(t *testing.T) {
	e := newEngine(t)
	var s stats.Streak

	for i := 0; i < 5; i++ {
		e.OnActivity(&s, at(monday.AddDays(i)))
	}

	assert.Equal(t, 5, s.CurrentCount)
	assert.Equal(t, 5, s.LongestStreak)
}

func TestOnActivity_CutoverCountsEarlyMorningAsPreviousDay(t *testing.T) {
	e := newEngine(t)
	var s stats.Streak

	e.OnActivity(&s, at(monday))
	// 03:30 on Tuesday still belongs to Monday.
	out := e.OnActivity(&s, monday.AddDays(1).Time().Add(3*time.Hour+30*time.Minute))
	assert.False(t, out.Counted)
	assert.Equal(t, 1, s.CurrentCount)

	out = e.OnActivity(&s, monday.AddDays(1).Time().Add(4*time.Hour))
	assert.True(t, out.Counted)
	assert.Equal(t, 2, s.CurrentCount)
}

func TestOnActivity_SingleMissedDayUsesFreeze(t *testing.T) {
	e := newEngine(t)
	s := stats.Streak{CurrentCount: 5, LongestStreak: 7, LastActivityDay: monday, FreezesAvailable: 2}

	out := e.OnActivity(&s, at(monday.AddDays(2)))

	assert.True(t, out.FreezeUsed)
	assert.False(t, out.Broken)
	assert.Equal(t, 6, s.CurrentCount)
	assert.Equal(t, 1, s.FreezesAvailable)
	assert.Equal(t, 1, s.FreezesUsed)
	assert.Equal(t, monday.AddDays(1), s.LastFreezeDay)
	assert.Equal(t, monday.AddDays(2), s.LastActivityDay)
}

func TestOnActivity_SingleMissedDayWithoutFreezeBreaks(t *testing.T) {
	e := newEngine(t)
	s := stats.Streak{CurrentCount: 5, LongestStreak: 9, LastActivityDay: monday}

	out := e.OnActivity(&s, at(monday.AddDays(2)))

	assert.True(t, out.Broken)
	assert.Equal(t, 5, out.PreviousCount)
	assert.Equal(t, 1, s.CurrentCount)
	assert.Equal(t, 9, s.LongestStreak)
}

func TestOnActivity_LongGapBreaksEvenWithFreezes(t *testing.T) {
	e := newEngine(t)
	s := stats.Streak{CurrentCount: 5, LongestStreak: 5, LastActivityDay: monday, FreezesAvailable: 3}

	out := e.OnActivity(&s, at(monday.AddDays(4)))

	assert.True(t, out.Broken)
	assert.Equal(t, 3, out.DaysMissed)
	assert.Equal(t, 1, s.CurrentCount)
	assert.Equal(t, 3, s.FreezesAvailable)
	assert.Equal(t, 5, s.LongestStreak)
}

func TestOnActivity_AfterMaintenanceBreakRestartsWithoutBrokenOutcome(t *testing.T) {
	e := newEngine(t)
	s := stats.Streak{CurrentCount: 0, LongestStreak: 4, LastActivityDay: monday}

	out := e.OnActivity(&s, at(monday.AddDays(5)))

	assert.False(t, out.Broken)
	assert.Equal(t, 1, s.CurrentCount)
	assert.Equal(t, 4, s.LongestStreak)
}

func TestOnActivity_OlderDayIgnored(t *testing.T) {
	e := newEngine(t)
	s := stats.Streak{CurrentCount: 3, LongestStreak: 3, LastActivityDay: monday.AddDays(3)}
	before := s

	out := e.OnActivity(&s, at(monday))

	assert.False(t, out.Counted)
	assert.Equal(t, before, s)
}

func TestResolveMissedDays(t *testing.T) {
	e := newEngine(t)
	today := monday.AddDays(10)

	t.Run("freeze covers one missed day and rerun is a no-op", func(t *testing.T) {
		s := stats.Streak{CurrentCount: 5, LongestStreak: 5, LastActivityDay: today.AddDays(-2), FreezesAvailable: 2}

		assert.Equal(t, ResolutionFrozen, e.ResolveMissedDays(&s, today))
		assert.Equal(t, 1, s.FreezesAvailable)
		assert.Equal(t, 5, s.CurrentCount)
		assert.Equal(t, today.AddDays(-1), s.LastActivityDay)

		assert.Equal(t, ResolutionNone, e.ResolveMissedDays(&s, today))
		assert.Equal(t, 1, s.FreezesAvailable)
	})

	t.Run("no freezes breaks and keeps longest", func(t *testing.T) {
		s := stats.Streak{CurrentCount: 5, LongestStreak: 8, LastActivityDay: today.AddDays(-2)}

		assert.Equal(t, ResolutionBroken, e.ResolveMissedDays(&s, today))
		assert.Equal(t, 0, s.CurrentCount)
		assert.Equal(t, 8, s.LongestStreak)

		assert.Equal(t, ResolutionNone, e.ResolveMissedDays(&s, today))
	})

	t.Run("up to date streak untouched", func(t *testing.T) {
		s := stats.Streak{CurrentCount: 2, LastActivityDay: today.AddDays(-1), FreezesAvailable: 1}
		assert.Equal(t, ResolutionNone, e.ResolveMissedDays(&s, today))
		assert.Equal(t, 1, s.FreezesAvailable)
	})

	t.Run("no streak untouched", func(t *testing.T) {
		var s stats.Streak
		assert.Equal(t, ResolutionNone, e.ResolveMissedDays(&s, today))
	})
}

func TestResolveMissedDays_OneFreezePerCall(t *testing.T) {
	e := newEngine(t)
	start := stats.Streak{CurrentCount: 6, LongestStreak: 6, LastActivityDay: monday, FreezesAvailable: 3}

	nightly := start
	for d := 2; d <= 4; d++ {
		assert.Equal(t, ResolutionFrozen, e.ResolveMissedDays(&nightly, monday.AddDays(d)), "night %d", d)
	}
	assert.Equal(t, 6, nightly.CurrentCount)
	assert.Equal(t, 0, nightly.FreezesAvailable)
	assert.Equal(t, 3, nightly.FreezesUsed)
	assert.Equal(t, monday.AddDays(3), nightly.LastActivityDay)

	late := start
	assert.Equal(t, ResolutionBroken, e.ResolveMissedDays(&late, monday.AddDays(4)))
	assert.Equal(t, 0, late.CurrentCount)
	assert.Equal(t, 3, late.FreezesAvailable, "a break spends nothing")
}

func TestAwardFreezes(t *testing.T) {
	e := newEngine(t)

	var s stats.Streak
	assert.Equal(t, 1, e.AwardFreezes(&s, 450, 620))
	assert.Equal(t, 1, s.FreezesAvailable)

	assert.Equal(t, 0, e.AwardFreezes(&s, 620, 990))
	assert.Equal(t, 4, e.AwardFreezes(&s, 990, 2500))
	assert.Equal(t, 5, s.FreezesAvailable)
	assert.Equal(t, 0, e.AwardFreezes(&s, 2500, 2500))

	capped := newEngine(t, func(c *Config) { c.MaxFreezes = 2 })
	s = stats.Streak{FreezesAvailable: 1}
	assert.Equal(t, 1, capped.AwardFreezes(&s, 0, 5000))
	assert.Equal(t, 2, s.FreezesAvailable)
	assert.Equal(t, 0, capped.AwardFreezes(&s, 5000, 6000))
}
