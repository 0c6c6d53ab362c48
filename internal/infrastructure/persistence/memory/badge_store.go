package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
)

type badgeSlot struct {
	mu sync.Mutex
	ub badge.UserBadge
}

// BadgeStore is an in-memory badge.Repository.
type BadgeStore struct {
	mu          sync.RWMutex
	definitions map[string]badge.Definition

	earned *xsync.MapOf[string, *badgeSlot]
}

// NewBadgeStore creates an empty store.
func NewBadgeStore() *BadgeStore {
	return &BadgeStore{
		definitions: make(map[string]badge.Definition),
		earned:      xsync.NewMapOf[*badgeSlot](),
	}
}

func badgeKey(userID, badgeID string) string {
	return userID + "\x00" + badgeID
}

// ListDefinitions implements badge.Repository.
func (s *BadgeStore) ListDefinitions(ctx context.Context, includeInactive bool) ([]badge.Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]badge.Definition, 0, len(s.definitions))
	for _, d := range s.definitions {
		if d.Active || includeInactive {
			out = append(out, copyDefinition(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertDefinition implements badge.Repository.
func (s *BadgeStore) UpsertDefinition(ctx context.Context, d badge.Definition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[d.ID] = copyDefinition(d)
	return nil
}

// GetUserBadge implements badge.Repository.
func (s *BadgeStore) GetUserBadge(ctx context.Context, userID, badgeID string) (*badge.UserBadge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slot, ok := s.earned.Load(badgeKey(userID, badgeID))
	if !ok {
		return nil, shared.ErrBadgeNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	ub := slot.ub
	return &ub, nil
}

// CreateUserBadge implements badge.Repository.
func (s *BadgeStore) CreateUserBadge(ctx context.Context, ub badge.UserBadge) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if ub.TimesEarned < 1 {
		ub.TimesEarned = 1
	}
	_, loaded := s.earned.LoadOrStore(badgeKey(ub.UserID, ub.BadgeID), &badgeSlot{ub: ub})
	return !loaded, nil
}

// RaiseTimesEarned implements badge.Repository.
func (s *BadgeStore) RaiseTimesEarned(ctx context.Context, userID, badgeID string, target int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	slot, ok := s.earned.Load(badgeKey(userID, badgeID))
	if !ok {
		return false, shared.ErrBadgeNotFound
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.ub.TimesEarned >= target {
		return false, nil
	}
	slot.ub.TimesEarned = target
	return true, nil
}

// ListUserBadges implements badge.Repository.
func (s *BadgeStore) ListUserBadges(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := userID + "\x00"
	out := make([]badge.UserBadge, 0)
	s.earned.Range(func(key string, slot *badgeSlot) bool {
		if strings.HasPrefix(key, prefix) {
			slot.mu.Lock()
			out = append(out, slot.ub)
			slot.mu.Unlock()
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].BadgeID < out[j].BadgeID
		}
		return out[i].EarnedAt.Before(out[j].EarnedAt)
	})
	return out, nil
}

func copyDefinition(d badge.Definition) badge.Definition {
	criteria := make(map[string]int, len(d.Criteria))
	for k, v := range d.Criteria {
		criteria[k] = v
	}
	d.Criteria = criteria
	return d
}
