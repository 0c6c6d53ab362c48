package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/streak"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/persistence/memory"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// Runs happen at noon on 2024-05-10, so today is that streak day.
var runAt = time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)

func may(day int) timeutil.Day { return timeutil.DayOf(2024, time.May, day) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

// flakyRepo fails Save for selected users and optionally every ScanPage
// after the first.
type flakyRepo struct {
	stats.Repository
	failSave  map[string]bool
	failScanN int

	mu    sync.Mutex
	scans int
}

func (r *flakyRepo) Save(ctx context.Context, s *stats.UserStats) error {
	if r.failSave[s.UserID] {
		return shared.WrapError("stats", "Save", shared.ErrStoreUnavailable, "injected", errors.New("disk on fire"))
	}
	return r.Repository.Save(ctx, s)
}

func (r *flakyRepo) ScanPage(ctx context.Context, after string, limit int) ([]*stats.UserStats, error) {
	r.mu.Lock()
	r.scans++
	n := r.scans
	r.mu.Unlock()
	if r.failScanN > 0 && n >= r.failScanN {
		return nil, shared.WrapError("stats", "ScanPage", shared.ErrStoreUnavailable, "injected", errors.New("connection reset"))
	}
	return r.Repository.ScanPage(ctx, after, limit)
}

type fixture struct {
	store *memory.StatsStore
	repo  stats.Repository
	bus   *recordingPublisher
	job   *StreakMaintenanceJob
}

func newFixture(t *testing.T, repo func(*memory.StatsStore) stats.Repository, locker Locker, pageSize int) *fixture {
	t.Helper()
	store := memory.NewStatsStore()
	var r stats.Repository = store
	if repo != nil {
		r = repo(store)
	}
	bus := &recordingPublisher{}
	engine := streak.NewEngine(streak.DefaultConfig(), timeutil.MustCalendar(time.UTC, 4, time.Monday))
	tx := stats.NewTransactor(r, stats.TxConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})

	cfg := DefaultStreakMaintenanceConfig()
	cfg.PageSize = pageSize
	cfg.Parallelism = 4

	job := NewStreakMaintenanceJob(tx, engine, bus, locker, nil, cfg).
		WithClock(func() time.Time { return runAt })
	return &fixture{store: store, repo: r, bus: bus, job: job}
}

func (f *fixture) seed(t *testing.T, userID string, count, longest, freezes int, last timeutil.Day) {
	t.Helper()
	doc := stats.New(userID, runAt.AddDate(0, -1, 0))
	doc.Streak.CurrentCount = count
	doc.Streak.LongestStreak = longest
	doc.Streak.FreezesAvailable = freezes
	doc.Streak.LastActivityDay = last
	require.NoError(t, f.store.Save(context.Background(), doc))
}

func (f *fixture) get(t *testing.T, userID string) *stats.UserStats {
	t.Helper()
	doc, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return doc
}

func TestDue(t *testing.T) {
	today := may(10)
	assert.False(t, Due(stats.Streak{}, today))
	assert.False(t, Due(stats.Streak{CurrentCount: 0, LastActivityDay: may(1)}, today))
	assert.False(t, Due(stats.Streak{CurrentCount: 3, LastActivityDay: may(10)}, today))
	assert.False(t, Due(stats.Streak{CurrentCount: 3, LastActivityDay: may(9)}, today))
	assert.True(t, Due(stats.Streak{CurrentCount: 3, LastActivityDay: may(8)}, today))
	assert.True(t, Due(stats.Streak{CurrentCount: 3, LastActivityDay: may(1)}, today))
}

func TestStreakMaintenance_FreezeCoversOneMissedDay(t *testing.T) {
	f := newFixture(t, nil, nil, 100)
	f.seed(t, "alice", 5, 5, 2, may(8))

	summary, err := f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, summary.State)
	assert.Equal(t, 1, summary.FreezesApplied)
	assert.Equal(t, 0, summary.StreaksBroken)

	doc := f.get(t, "alice")
	assert.Equal(t, 5, doc.Streak.CurrentCount)
	assert.Equal(t, 1, doc.Streak.FreezesAvailable)
	assert.Equal(t, 1, doc.Streak.FreezesUsed)
	assert.Equal(t, may(9), doc.Streak.LastFreezeDay)
	assert.Equal(t, may(9), doc.Streak.LastActivityDay)
	assert.Equal(t, stats.StateFrozenToday, doc.Streak.State(may(10)))
	assert.Equal(t, 1, f.bus.count(shared.EventFreezeUsed))
	assert.Equal(t, 1, f.bus.count(shared.EventMaintenanceCompleted))
}

func TestStreakMaintenance_BreaksWithoutFreezes(t *testing.T) {
	f := newFixture(t, nil, nil, 100)
	f.seed(t, "bob", 7, 12, 0, may(8))
	f.seed(t, "carol", 4, 4, 3, may(5))

	summary, err := f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.StreaksBroken)
	assert.Equal(t, 0, summary.FreezesApplied)

	bob := f.get(t, "bob")
	assert.Equal(t, 0, bob.Streak.CurrentCount)
	assert.Equal(t, 12, bob.Streak.LongestStreak)
	assert.Equal(t, may(8), bob.Streak.LastActivityDay)

	// A multi-day gap breaks even with freezes in stock.
	carol := f.get(t, "carol")
	assert.Equal(t, 0, carol.Streak.CurrentCount)
	assert.Equal(t, 3, carol.Streak.FreezesAvailable)
	assert.Equal(t, 2, f.bus.count(shared.EventStreakBroken))
}

func TestStreakMaintenance_RerunIsIdempotent(t *testing.T) {
	f := newFixture(t, nil, nil, 100)
	f.seed(t, "alice", 5, 5, 2, may(8))
	f.seed(t, "bob", 7, 7, 0, may(8))
	f.seed(t, "dave", 2, 2, 0, may(9))

	first, err := f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.FreezesApplied)
	assert.Equal(t, 1, first.StreaksBroken)

	second, err := f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, second.UsersScanned)
	assert.Equal(t, 0, second.FreezesApplied)
	assert.Equal(t, 0, second.StreaksBroken)
	assert.NotEqual(t, first.RunID, second.RunID)

	assert.Equal(t, 1, f.get(t, "alice").Streak.FreezesAvailable)
	assert.Equal(t, 2, f.get(t, "dave").Streak.CurrentCount)
	assert.Equal(t, second, f.job.LastRunStats())
}

func TestStreakMaintenance_PaginatesEveryUser(t *testing.T) {
	f := newFixture(t, nil, nil, 3)
	for i := 0; i < 10; i++ {
		f.seed(t, fmt.Sprintf("user-%02d", i), 3, 3, 0, may(7))
	}

	summary, err := f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, summary.UsersScanned)
	assert.Equal(t, 10, summary.StreaksBroken)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, f.get(t, fmt.Sprintf("user-%02d", i)).Streak.CurrentCount)
	}
}

func TestStreakMaintenance_UserFailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t, func(s *memory.StatsStore) stats.Repository {
		return &flakyRepo{Repository: s, failSave: map[string]bool{"bob": true}}
	}, nil, 100)
	f.seed(t, "alice", 5, 5, 1, may(8))
	f.seed(t, "bob", 5, 5, 1, may(8))
	f.seed(t, "carol", 5, 5, 0, may(8))

	summary, err := f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, summary.State)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.FreezesApplied)
	assert.Equal(t, 1, summary.StreaksBroken)
	assert.Equal(t, 1, f.get(t, "bob").Streak.FreezesAvailable)
}

func TestStreakMaintenance_ScanFailureIsPartial(t *testing.T) {
	f := newFixture(t, func(s *memory.StatsStore) stats.Repository {
		return &flakyRepo{Repository: s, failScanN: 2}
	}, nil, 2)
	f.seed(t, "a", 3, 3, 0, may(7))
	f.seed(t, "b", 3, 3, 0, may(7))
	f.seed(t, "c", 3, 3, 0, may(7))

	summary, err := f.job.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.Equal(t, StateFailedPartial, summary.State)
	assert.Equal(t, StateFailedPartial, f.job.State())

	// The first page stays committed.
	assert.Equal(t, 2, summary.StreaksBroken)
	assert.Equal(t, 0, f.get(t, "a").Streak.CurrentCount)
	assert.Equal(t, 3, f.get(t, "c").Streak.CurrentCount)
}

func TestStreakMaintenance_SecondRunIsSkippedWhileLocked(t *testing.T) {
	lock := memory.NewRunLock()
	f := newFixture(t, nil, lock, 100)
	f.seed(t, "alice", 5, 5, 0, may(8))

	key := DefaultStreakMaintenanceConfig().LockKey(may(10).String())
	release, ok, err := lock.TryLock(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)

	summary, err := f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, summary.State)
	assert.Equal(t, 5, f.get(t, "alice").Streak.CurrentCount)

	require.NoError(t, release(context.Background()))

	summary, err = f.job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateComplete, summary.State)
	assert.Equal(t, 1, summary.StreaksBroken)
	assert.False(t, lock.Held(key))
}
