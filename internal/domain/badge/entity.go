// Package badge evaluates achievement badges against a user's stats and
// records unlocks exactly once per (user, badge).
package badge

import (
	"time"
)

// Definition is a catalog entry.
type Definition struct {
	ID          string         `json:"badge_id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Category    string         `json:"category" yaml:"category"`
	Tier        string         `json:"tier,omitempty" yaml:"tier"`
	Criteria    map[string]int `json:"criteria" yaml:"criteria"`
	Points      int            `json:"points" yaml:"points"`
	Active      bool           `json:"active" yaml:"active"`
	Repeatable  bool           `json:"repeatable" yaml:"repeatable"`
	CreatedAt   time.Time      `json:"created_at" yaml:"-"`
}

// Evaluable reports whether d is active and every criterion is measurable.
// Unknown keys make it non-evaluable too; ParseCriteria reports those.
func (d Definition) Evaluable() bool {
	if !d.Active || len(d.Criteria) == 0 {
		return false
	}
	criteria, err := ParseCriteria(d.Criteria)
	if err != nil {
		return false
	}
	for _, c := range criteria {
		if !c.Kind.Implemented() {
			return false
		}
	}
	return true
}

// UserBadge records that a user earned a badge.
type UserBadge struct {
	UserID      string    `json:"user_id"`
	BadgeID     string    `json:"badge_id"`
	EarnedAt    time.Time `json:"earned_at"`
	TimesEarned int       `json:"times_earned"`
}

// Unlocked is one badge earned during an evaluation.
type Unlocked struct {
	Definition  Definition
	TimesEarned int
	Repeat      bool // an existing badge earned again
	EarnedAt    time.Time
}
