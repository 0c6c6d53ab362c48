package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Pool().Exec(ctx, query); err != nil {
		return storeError("Migrate", "create migrations table", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Pool().Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, storeError("Migrate", "query applied migrations", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			version   int
			appliedAt time.Time
		)
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[version] = appliedAt
	}
	return out, rows.Err()
}

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	ran := 0
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return ran, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		ran++
	}
	return ran, nil
}

// Status returns every known migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := done[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}
	return result, nil
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_user_stats", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_badges", UpSQL: migration002Up, DownSQL: migration002Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USER STATS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id            VARCHAR(128) PRIMARY KEY,
    total_xp           INTEGER NOT NULL DEFAULT 0,
    current_level      INTEGER NOT NULL DEFAULT 1,
    level_title        VARCHAR(64) NOT NULL DEFAULT '',
    activities         JSONB NOT NULL DEFAULT '{}'::jsonb,

    current_count      INTEGER NOT NULL DEFAULT 0,
    longest_streak     INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    freezes_available  INTEGER NOT NULL DEFAULT 0,
    freezes_used       INTEGER NOT NULL DEFAULT 0,
    last_freeze_date   DATE,

    week_start         DATE,
    week_quiz          BOOLEAN NOT NULL DEFAULT FALSE,
    week_flashcard     BOOLEAN NOT NULL DEFAULT FALSE,
    week_evaluation    BOOLEAN NOT NULL DEFAULT FALSE,
    week_guide         BOOLEAN NOT NULL DEFAULT FALSE,
    bonus_active       BOOLEAN NOT NULL DEFAULT FALSE,
    bonus_multiplier   DOUBLE PRECISION NOT NULL DEFAULT 0,
    bonus_until        DATE,

    joined_at          TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    version            BIGINT NOT NULL DEFAULT 1,

    CONSTRAINT valid_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_freezes CHECK (freezes_available >= 0 AND freezes_used >= 0),
    CONSTRAINT valid_streak CHECK (current_count >= 0 AND longest_streak >= current_count)
);

CREATE INDEX IF NOT EXISTS idx_user_stats_active_streaks
    ON user_stats(user_id) WHERE current_count > 0;
`

const migration001Down = `
DROP TABLE IF EXISTS user_stats;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: BADGES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS badge_definitions (
    badge_id    VARCHAR(64) PRIMARY KEY,
    name        VARCHAR(128) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category    VARCHAR(32) NOT NULL DEFAULT '',
    tier        VARCHAR(32) NOT NULL DEFAULT '',
    criteria    JSONB NOT NULL DEFAULT '{}'::jsonb,
    points      INTEGER NOT NULL DEFAULT 0,
    active      BOOLEAN NOT NULL DEFAULT TRUE,
    repeatable  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_badges (
    user_id      VARCHAR(128) NOT NULL,
    badge_id     VARCHAR(64) NOT NULL REFERENCES badge_definitions(badge_id),
    earned_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    times_earned INTEGER NOT NULL DEFAULT 1,

    PRIMARY KEY (user_id, badge_id),
    CONSTRAINT valid_times CHECK (times_earned >= 1)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user_earned ON user_badges(user_id, earned_at);
`

const migration002Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS badge_definitions;
`
