package stats

import (
	"context"
	"errors"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/pkg/retry"
)

// ErrNoChange may be returned by a mutation to skip the write. Any edits the
// mutation made are discarded and the document is returned as loaded.
var ErrNoChange = errors.New("stats: no change")

// Mutation edits a freshly loaded document. It may run more than once.
type Mutation func(s *UserStats) error

// TxConfig bounds the read-modify-write retry loop.
type TxConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       float64
}

// DefaultTxConfig returns the default retry bounds.
func DefaultTxConfig() TxConfig {
	return TxConfig{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Jitter:       0.2,
	}
}

// Transactor runs mutations as optimistic read-modify-write cycles.
// Both the live activity path and the maintenance job go through it.
type Transactor struct {
	repo    Repository
	retrier *retry.Retrier
}

// NewTransactor creates a Transactor over repo.
func NewTransactor(repo Repository, cfg TxConfig) *Transactor {
	return &Transactor{
		repo: repo,
		retrier: retry.NewWithConfig(retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   2.0,
			JitterFactor: cfg.Jitter,
			RetryIf:      shared.IsConflict,
		}),
	}
}

// Repository returns the underlying store.
func (t *Transactor) Repository() Repository { return t.repo }

// Update mutates an existing document. A missing document is an error
// matching shared.ErrNotFound.
func (t *Transactor) Update(ctx context.Context, userID string, fn Mutation) (*UserStats, error) {
	return t.run(ctx, userID, nil, fn)
}

// Upsert mutates the document, creating it with create when absent.
func (t *Transactor) Upsert(ctx context.Context, userID string, create func() *UserStats, fn Mutation) (*UserStats, error) {
	return t.run(ctx, userID, create, fn)
}

func (t *Transactor) run(ctx context.Context, userID string, create func() *UserStats, fn Mutation) (*UserStats, error) {
	committed, err := retry.DoWithData(ctx, t.retrier, func(ctx context.Context) (*UserStats, error) {
		doc, err := t.repo.Get(ctx, userID)
		switch {
		case err == nil:
		case shared.IsNotFound(err) && create != nil:
			doc = create()
			doc.Version = 0
		default:
			return nil, retry.Permanent(err)
		}

		loaded := doc.Clone()
		if err := fn(doc); err != nil {
			if errors.Is(err, ErrNoChange) {
				return loaded, nil
			}
			return nil, retry.Permanent(err)
		}

		if err := t.repo.Save(ctx, doc); err != nil {
			if shared.IsConflict(err) {
				return nil, err
			}
			return nil, retry.Permanent(err)
		}
		return doc, nil
	})
	if err != nil {
		if shared.IsConflict(err) {
			return nil, shared.WrapError("stats", "Transact", shared.ErrStoreUnavailable,
				"conflict retries exhausted", err)
		}
		return nil, err
	}
	return committed, nil
}
