// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types emitted by the gamification engines.
const (
	// Progress events
	EventXPGained EventType = "progress.xp_gained"
	EventLevelUp  EventType = "progress.level_up"

	// Streak events
	EventStreakExtended       EventType = "streak.extended"
	EventStreakBroken         EventType = "streak.broken"
	EventFreezeUsed           EventType = "streak.freeze_used"
	EventFreezesEarned        EventType = "streak.freezes_earned"
	EventWeeklyBonusActivated EventType = "streak.weekly_bonus_activated"

	// Badge events
	EventBadgeEarned EventType = "badge.earned"

	// System events
	EventMaintenanceCompleted EventType = "system.maintenance_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// Correlation returns the correlation ID, if any.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a user is credited XP for an activity.
type XPGainedEvent struct {
	BaseEvent
	UserID       string  `json:"user_id"`
	ActivityType string  `json:"activity_type"`
	BaseAmount   int     `json:"base_amount"`
	Amount       int     `json:"amount"`
	Multiplier   float64 `json:"multiplier"`
	NewTotal     int     `json:"new_total"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"activity_type": e.ActivityType,
		"base_amount":   e.BaseAmount,
		"amount":        e.Amount,
		"multiplier":    e.Multiplier,
		"new_total":     e.NewTotal,
	}
}

// LevelUpEvent is emitted when total XP crosses a level threshold.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Title    string `json:"title"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"title":     e.Title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Events
// ═══════════════════════════════════════════════════════════════════════════

// StreakExtendedEvent is emitted when an activity counts a new streak day.
type StreakExtendedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	Count   int    `json:"count"`
	Longest int    `json:"longest"`
	Day     string `json:"day"`
}

// Payload implements Event interface.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"count":   e.Count,
		"longest": e.Longest,
		"day":     e.Day,
	}
}

// StreakBrokenEvent is emitted when a streak resets to zero.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
	Source         string `json:"source"` // "activity" or "maintenance"
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
		"source":          e.Source,
	}
}

// FreezeUsedEvent is emitted when a freeze covers a single missed day.
type FreezeUsedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	CoveredDay       string `json:"covered_day"`
	FreezesRemaining int    `json:"freezes_remaining"`
	Source           string `json:"source"`
}

// Payload implements Event interface.
func (e FreezeUsedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"covered_day":       e.CoveredDay,
		"freezes_remaining": e.FreezesRemaining,
		"source":            e.Source,
	}
}

// FreezesEarnedEvent is emitted when XP crosses one or more freeze thresholds.
type FreezesEarnedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Earned    int    `json:"earned"`
	Available int    `json:"available"`
}

// Payload implements Event interface.
func (e FreezesEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"earned":    e.Earned,
		"available": e.Available,
	}
}

// WeeklyBonusActivatedEvent is emitted when all weekly categories are complete.
type WeeklyBonusActivatedEvent struct {
	BaseEvent
	UserID     string  `json:"user_id"`
	Multiplier float64 `json:"multiplier"`
	ActiveFrom string  `json:"active_from"`
	Until      string  `json:"until"`
}

// Payload implements Event interface.
func (e WeeklyBonusActivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"multiplier":  e.Multiplier,
		"active_from": e.ActiveFrom,
		"until":       e.Until,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Events
// ═══════════════════════════════════════════════════════════════════════════

// BadgeEarnedEvent is emitted on first unlock or a repeat earn.
type BadgeEarnedEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	BadgeID     string `json:"badge_id"`
	BadgeName   string `json:"badge_name"`
	Points      int    `json:"points"`
	TimesEarned int    `json:"times_earned"`
}

// Payload implements Event interface.
func (e BadgeEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"badge_id":     e.BadgeID,
		"badge_name":   e.BadgeName,
		"points":       e.Points,
		"times_earned": e.TimesEarned,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// MaintenanceCompletedEvent is emitted at the end of a maintenance run.
type MaintenanceCompletedEvent struct {
	BaseEvent
	RunID          string `json:"run_id"`
	State          string `json:"state"`
	UsersScanned   int    `json:"users_scanned"`
	FreezesApplied int    `json:"freezes_applied"`
	StreaksBroken  int    `json:"streaks_broken"`
	Errors         int    `json:"errors"`
}

// Payload implements Event interface.
func (e MaintenanceCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"run_id":          e.RunID,
		"state":           e.State,
		"users_scanned":   e.UsersScanned,
		"freezes_applied": e.FreezesApplied,
		"streaks_broken":  e.StreaksBroken,
		"errors":          e.Errors,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
