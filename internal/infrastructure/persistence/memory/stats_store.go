// Package memory provides in-process implementations of the stats and badge
// repositories with the same conditional-write semantics as the SQL store.
// They back tests, local runs and the CLI with STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
)

// statsSlot guards one user's document. A nil doc means the slot was
// reserved but never committed.
type statsSlot struct {
	mu  sync.Mutex
	doc *stats.UserStats
}

// StatsStore is a versioned in-memory stats.Repository.
type StatsStore struct {
	docs *xsync.MapOf[string, *statsSlot]
}

// NewStatsStore creates an empty store.
func NewStatsStore() *StatsStore {
	return &StatsStore{docs: xsync.NewMapOf[*statsSlot]()}
}

// Get implements stats.Repository.
func (s *StatsStore) Get(ctx context.Context, userID string) (*stats.UserStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slot, ok := s.docs.Load(userID)
	if !ok {
		return nil, shared.ErrStatsNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.doc == nil {
		return nil, shared.ErrStatsNotFound
	}
	return slot.doc.Clone(), nil
}

// Save implements stats.Repository.
func (s *StatsStore) Save(ctx context.Context, doc *stats.UserStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var slot *statsSlot
	if doc.Version == 0 {
		slot, _ = s.docs.LoadOrStore(doc.UserID, &statsSlot{})
	} else {
		var ok bool
		if slot, ok = s.docs.Load(doc.UserID); !ok {
			return shared.ErrVersionSkew
		}
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	switch {
	case doc.Version == 0 && slot.doc != nil:
		return shared.ErrVersionSkew
	case doc.Version != 0 && (slot.doc == nil || slot.doc.Version != doc.Version):
		return shared.ErrVersionSkew
	}

	stored := doc.Clone()
	stored.Version = doc.Version + 1
	slot.doc = stored
	doc.Version = stored.Version
	return nil
}

// ScanPage implements stats.Repository.
func (s *StatsStore) ScanPage(ctx context.Context, afterUserID string, limit int) ([]*stats.UserStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	keys := make([]string, 0)
	s.docs.Range(func(key string, _ *statsSlot) bool {
		if key > afterUserID {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)

	page := make([]*stats.UserStats, 0, limit)
	for _, key := range keys {
		if len(page) == limit {
			break
		}
		if doc, err := s.Get(ctx, key); err == nil {
			page = append(page, doc)
		}
	}
	return page, nil
}

// Len returns the number of committed documents.
func (s *StatsStore) Len() int {
	n := 0
	s.docs.Range(func(_ string, slot *statsSlot) bool {
		slot.mu.Lock()
		if slot.doc != nil {
			n++
		}
		slot.mu.Unlock()
		return true
	})
	return n
}
