package stats_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/persistence/memory"
)

func fastTx() stats.TxConfig {
	return stats.TxConfig{MaxAttempts: 50, InitialDelay: time.Microsecond, MaxDelay: time.Millisecond, Jitter: 0.5}
}

func TestTransactor_UpsertCreatesAndUpdates(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStatsStore()
	tx := stats.NewTransactor(repo, fastTx())
	now := time.Now()

	newDoc := func() *stats.UserStats { return stats.New("u1", now) }

	doc, err := tx.Upsert(ctx, "u1", newDoc, func(s *stats.UserStats) error {
		s.TotalXP += 10
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)

	doc, err = tx.Upsert(ctx, "u1", newDoc, func(s *stats.UserStats) error {
		s.TotalXP += 5
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 15, doc.TotalXP)
	assert.Equal(t, int64(2), doc.Version)
}

func TestTransactor_UpdateMissingIsNotFound(t *testing.T) {
	tx := stats.NewTransactor(memory.NewStatsStore(), fastTx())

	_, err := tx.Update(context.Background(), "ghost", func(s *stats.UserStats) error { return nil })
	assert.True(t, shared.IsNotFound(err))
}

func TestTransactor_NoChangeSkipsWrite(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStatsStore()
	tx := stats.NewTransactor(repo, fastTx())
	doc := stats.New("u1", time.Now())
	require.NoError(t, repo.Save(ctx, doc))

	got, err := tx.Update(ctx, "u1", func(s *stats.UserStats) error {
		s.TotalXP = 999
		return stats.ErrNoChange
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	stored, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.TotalXP)
}

func TestTransactor_MutationErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	tx := stats.NewTransactor(memory.NewStatsStore(), fastTx())
	boom := errors.New("boom")
	calls := 0

	_, err := tx.Upsert(ctx, "u1", func() *stats.UserStats { return stats.New("u1", time.Now()) },
		func(s *stats.UserStats) error {
			calls++
			return boom
		})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestTransactor_ConcurrentIncrementsAreLinearized(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStatsStore()
	tx := stats.NewTransactor(repo, fastTx())
	newDoc := func() *stats.UserStats { return stats.New("u1", time.Now()) }

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tx.Upsert(ctx, "u1", newDoc, func(s *stats.UserStats) error {
				s.TotalXP++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, workers, doc.TotalXP)
	assert.Equal(t, int64(workers), doc.Version)
}

type alwaysConflict struct{ *memory.StatsStore }

func (alwaysConflict) Save(context.Context, *stats.UserStats) error { return shared.ErrVersionSkew }

func TestTransactor_ExhaustedConflictsSurfaceAsStoreUnavailable(t *testing.T) {
	repo := alwaysConflict{memory.NewStatsStore()}
	tx := stats.NewTransactor(repo, stats.TxConfig{MaxAttempts: 3, InitialDelay: time.Microsecond, MaxDelay: time.Microsecond})
	calls := 0

	_, err := tx.Upsert(context.Background(), "u1", func() *stats.UserStats { return stats.New("u1", time.Now()) },
		func(s *stats.UserStats) error {
			calls++
			return nil
		})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.ErrorIs(t, err, shared.ErrTransactionConflict)
	assert.Equal(t, 3, calls)
}

type unavailable struct{ *memory.StatsStore }

func (unavailable) Get(context.Context, string) (*stats.UserStats, error) {
	return nil, shared.WrapError("stats", "Get", shared.ErrStoreUnavailable, "connection refused", errors.New("dial tcp"))
}

func TestTransactor_StoreUnavailableNotRetried(t *testing.T) {
	tx := stats.NewTransactor(unavailable{memory.NewStatsStore()}, fastTx())
	calls := 0

	_, err := tx.Update(context.Background(), "u1", func(s *stats.UserStats) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.Equal(t, 0, calls)
}
