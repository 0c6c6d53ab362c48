package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StatsRepository implements stats.Repository for PostgreSQL.
type StatsRepository struct {
	conn *Connection
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(conn *Connection) *StatsRepository {
	return &StatsRepository{conn: conn}
}

const statsColumns = `
	user_id, total_xp, current_level, level_title, activities,
	current_count, longest_streak, last_activity_date, freezes_available, freezes_used, last_freeze_date,
	week_start, week_quiz, week_flashcard, week_evaluation, week_guide,
	bonus_active, bonus_multiplier, bonus_until,
	joined_at, updated_at, version`

// Get implements stats.Repository.
func (r *StatsRepository) Get(ctx context.Context, userID string) (*stats.UserStats, error) {
	row := r.conn.Pool().QueryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID)
	s, err := scanStats(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStatsNotFound
		}
		return nil, storeError("GetStats", "select user_stats", err)
	}
	return s, nil
}

// Save implements stats.Repository. The version predicate makes every write
// conditional; zero rows affected means another writer got there first.
func (r *StatsRepository) Save(ctx context.Context, s *stats.UserStats) error {
	activities, err := json.Marshal(s.ActivityCounters)
	if err != nil {
		return fmt.Errorf("failed to marshal activities: %w", err)
	}

	st := s.Streak
	args := []any{
		s.UserID, s.TotalXP, s.Level, s.LevelTitle, activities,
		st.CurrentCount, st.LongestStreak, dateArg(st.LastActivityDay), st.FreezesAvailable, st.FreezesUsed, dateArg(st.LastFreezeDay),
		dateArg(st.WeekStart), st.Weekly.Quiz, st.Weekly.Flashcard, st.Weekly.Evaluation, st.Weekly.Guide,
		st.BonusActive, st.BonusMultiplier, dateArg(st.BonusUntil),
		s.JoinedAt, s.UpdatedAt,
	}

	var query string
	if s.Version == 0 {
		query = `
			INSERT INTO user_stats (` + statsColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, 1)
			ON CONFLICT (user_id) DO NOTHING`
	} else {
		query = `
			UPDATE user_stats SET
				total_xp = $2, current_level = $3, level_title = $4, activities = $5,
				current_count = $6, longest_streak = $7, last_activity_date = $8,
				freezes_available = $9, freezes_used = $10, last_freeze_date = $11,
				week_start = $12, week_quiz = $13, week_flashcard = $14, week_evaluation = $15, week_guide = $16,
				bonus_active = $17, bonus_multiplier = $18, bonus_until = $19,
				joined_at = $20, updated_at = $21, version = version + 1
			WHERE user_id = $1 AND version = $22`
		args = append(args, s.Version)
	}

	tag, err := r.conn.Pool().Exec(ctx, query, args...)
	if err != nil {
		return storeError("SaveStats", "write user_stats", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrVersionSkew
	}
	s.Version++
	return nil
}

// ScanPage implements stats.Repository using keyset pagination.
func (r *StatsRepository) ScanPage(ctx context.Context, afterUserID string, limit int) ([]*stats.UserStats, error) {
	rows, err := r.conn.Pool().Query(ctx, `
		SELECT `+statsColumns+`
		FROM user_stats
		WHERE user_id > $1
		ORDER BY user_id
		LIMIT $2`, afterUserID, limit)
	if err != nil {
		return nil, storeError("ScanStats", "scan user_stats", err)
	}
	defer rows.Close()

	out := make([]*stats.UserStats, 0, limit)
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			return nil, storeError("ScanStats", "scan row", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ScanStats", "iterate rows", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanStats(row pgx.Row) (*stats.UserStats, error) {
	var (
		s          stats.UserStats
		activities []byte

		lastActivity, lastFreeze, weekStart, bonusUntil pgtype.Date
	)
	st := &s.Streak
	err := row.Scan(
		&s.UserID, &s.TotalXP, &s.Level, &s.LevelTitle, &activities,
		&st.CurrentCount, &st.LongestStreak, &lastActivity, &st.FreezesAvailable, &st.FreezesUsed, &lastFreeze,
		&weekStart, &st.Weekly.Quiz, &st.Weekly.Flashcard, &st.Weekly.Evaluation, &st.Weekly.Guide,
		&st.BonusActive, &st.BonusMultiplier, &bonusUntil,
		&s.JoinedAt, &s.UpdatedAt, &s.Version,
	)
	if err != nil {
		return nil, err
	}

	s.ActivityCounters = make(map[stats.Category]int, len(stats.Categories))
	if len(activities) > 0 {
		if err := json.Unmarshal(activities, &s.ActivityCounters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activities: %w", err)
		}
	}
	st.LastActivityDay = dayFrom(lastActivity)
	st.LastFreezeDay = dayFrom(lastFreeze)
	st.WeekStart = dayFrom(weekStart)
	st.BonusUntil = dayFrom(bonusUntil)
	return &s, nil
}

// dateArg stores the zero Day as NULL.
func dateArg(d timeutil.Day) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func dayFrom(d pgtype.Date) timeutil.Day {
	if !d.Valid {
		return 0
	}
	return timeutil.DayFromTime(d.Time)
}
