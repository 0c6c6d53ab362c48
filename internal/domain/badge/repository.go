package badge

import (
	"context"
)

// Repository defines persistence for the badge catalog and user badges.
type Repository interface {
	// ListDefinitions returns catalog entries ordered by ID.
	// Inactive definitions are included only when includeInactive is set.
	ListDefinitions(ctx context.Context, includeInactive bool) ([]Definition, error)

	// UpsertDefinition creates or replaces a catalog entry.
	UpsertDefinition(ctx context.Context, d Definition) error

	// GetUserBadge returns an error matching shared.ErrNotFound when absent.
	GetUserBadge(ctx context.Context, userID, badgeID string) (*UserBadge, error)

	// CreateUserBadge inserts ub only if no (user, badge) record exists.
	// The existence check and insert are atomic.
	CreateUserBadge(ctx context.Context, ub UserBadge) (created bool, err error)

	// RaiseTimesEarned sets times_earned to target only if the stored value
	// is lower. Reports whether a change was made.
	RaiseTimesEarned(ctx context.Context, userID, badgeID string, target int) (raised bool, err error)

	// ListUserBadges returns a user's badges ordered by earn time.
	ListUserBadges(ctx context.Context, userID string) ([]UserBadge, error)
}
