package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// BadgeRepository implements badge.Repository for PostgreSQL.
type BadgeRepository struct {
	conn *Connection
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(conn *Connection) *BadgeRepository {
	return &BadgeRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

// ListDefinitions implements badge.Repository.
func (r *BadgeRepository) ListDefinitions(ctx context.Context, includeInactive bool) ([]badge.Definition, error) {
	rows, err := r.conn.Pool().Query(ctx, `
		SELECT badge_id, name, description, category, tier, criteria, points, active, repeatable, created_at
		FROM badge_definitions
		WHERE active OR $1
		ORDER BY badge_id`, includeInactive)
	if err != nil {
		return nil, storeError("ListDefinitions", "select badge_definitions", err)
	}
	defer rows.Close()

	out := make([]badge.Definition, 0)
	for rows.Next() {
		var (
			d        badge.Definition
			criteria []byte
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Category, &d.Tier,
			&criteria, &d.Points, &d.Active, &d.Repeatable, &d.CreatedAt); err != nil {
			return nil, storeError("ListDefinitions", "scan row", err)
		}
		if err := json.Unmarshal(criteria, &d.Criteria); err != nil {
			return nil, fmt.Errorf("badge %s: failed to unmarshal criteria: %w", d.ID, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ListDefinitions", "iterate rows", err)
	}
	return out, nil
}

// UpsertDefinition implements badge.Repository.
func (r *BadgeRepository) UpsertDefinition(ctx context.Context, d badge.Definition) error {
	criteria, err := json.Marshal(d.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal criteria: %w", err)
	}

	_, err = r.conn.Pool().Exec(ctx, `
		INSERT INTO badge_definitions (badge_id, name, description, category, tier, criteria, points, active, repeatable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (badge_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			tier = EXCLUDED.tier,
			criteria = EXCLUDED.criteria,
			points = EXCLUDED.points,
			active = EXCLUDED.active,
			repeatable = EXCLUDED.repeatable`,
		d.ID, d.Name, d.Description, d.Category, d.Tier, criteria, d.Points, d.Active, d.Repeatable)
	if err != nil {
		return storeError("UpsertDefinition", "write badge_definitions", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// User badges
// ─────────────────────────────────────────────────────────────────────────────

// GetUserBadge implements badge.Repository.
func (r *BadgeRepository) GetUserBadge(ctx context.Context, userID, badgeID string) (*badge.UserBadge, error) {
	var ub badge.UserBadge
	err := r.conn.Pool().QueryRow(ctx, `
		SELECT user_id, badge_id, earned_at, times_earned
		FROM user_badges
		WHERE user_id = $1 AND badge_id = $2`, userID, badgeID).
		Scan(&ub.UserID, &ub.BadgeID, &ub.EarnedAt, &ub.TimesEarned)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrBadgeNotFound
		}
		return nil, storeError("GetUserBadge", "select user_badges", err)
	}
	return &ub, nil
}

// CreateUserBadge implements badge.Repository. The existence check and the
// insert share one transaction; the primary key settles concurrent inserts.
func (r *BadgeRepository) CreateUserBadge(ctx context.Context, ub badge.UserBadge) (bool, error) {
	if ub.TimesEarned < 1 {
		ub.TimesEarned = 1
	}

	created := false
	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM user_badges WHERE user_id = $1 AND badge_id = $2)`,
			ub.UserID, ub.BadgeID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO user_badges (user_id, badge_id, earned_at, times_earned)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, badge_id) DO NOTHING`,
			ub.UserID, ub.BadgeID, ub.EarnedAt, ub.TimesEarned)
		if err != nil {
			return err
		}
		created = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, storeError("CreateUserBadge", "insert user_badges", err)
	}
	return created, nil
}

// RaiseTimesEarned implements badge.Repository.
func (r *BadgeRepository) RaiseTimesEarned(ctx context.Context, userID, badgeID string, target int) (bool, error) {
	tag, err := r.conn.Pool().Exec(ctx, `
		UPDATE user_badges SET times_earned = $3
		WHERE user_id = $1 AND badge_id = $2 AND times_earned < $3`,
		userID, badgeID, target)
	if err != nil {
		return false, storeError("RaiseTimesEarned", "update user_badges", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListUserBadges implements badge.Repository.
func (r *BadgeRepository) ListUserBadges(ctx context.Context, userID string) ([]badge.UserBadge, error) {
	rows, err := r.conn.Pool().Query(ctx, `
		SELECT user_id, badge_id, earned_at, times_earned
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at, badge_id`, userID)
	if err != nil {
		return nil, storeError("ListUserBadges", "select user_badges", err)
	}
	defer rows.Close()

	out := make([]badge.UserBadge, 0)
	for rows.Next() {
		var ub badge.UserBadge
		if err := rows.Scan(&ub.UserID, &ub.BadgeID, &ub.EarnedAt, &ub.TimesEarned); err != nil {
			return nil, storeError("ListUserBadges", "scan row", err)
		}
		out = append(out, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ListUserBadges", "iterate rows", err)
	}
	return out, nil
}
