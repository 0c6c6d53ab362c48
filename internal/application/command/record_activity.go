// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/activity"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/streak"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/xp"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

var tracer = otel.Tracer("github.com/TEJ42000/ALLMS-sub004/internal/application/command")

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ACTIVITY COMMAND
// Turns one completed learning activity into XP, streak progress and badges.
// The stats document is written once per call through a conditional write.
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityCommand contains the data to record an activity.
type RecordActivityCommand struct {
	// UserID is the authenticated user.
	UserID string

	// Type is the type of activity.
	Type activity.Type

	// Payload carries the activity-specific fields, as decoded from JSON.
	Payload map[string]any

	// OccurredAt is when the activity happened (defaults to now if zero).
	OccurredAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RecordActivityCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	return nil
}

// RecordActivityResult contains the result of recording an activity.
type RecordActivityResult struct {
	UserID       string
	ActivityType activity.Type

	// Recognized is false for unknown activity types; nothing was written.
	Recognized bool

	BaseXP     int
	XPAwarded  int
	Multiplier float64
	NewTotalXP int

	LeveledUp  bool
	NewLevel   int
	LevelTitle string

	StreakCount      int
	LongestStreak    int
	StreakCounted    bool
	StreakBroken     bool
	FreezeUsed       bool
	FreezesAwarded   int
	FreezesAvailable int
	BonusActivated   bool
	BonusActive      bool

	BadgesEarned []badge.Unlocked

	// Events contains domain events generated.
	Events []shared.Event

	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordActivityHandler handles the RecordActivityCommand.
type RecordActivityHandler struct {
	tx             *stats.Transactor
	xp             *xp.Engine
	streak         *streak.Engine
	badges         *badge.Engine
	eventPublisher shared.EventPublisher
	log            *logger.Logger

	evaluateBadges bool
	badgeGate      func(userID string) bool
	clock          func() time.Time
}

// RecordActivityHandlerConfig contains configuration for the handler.
type RecordActivityHandlerConfig struct {
	EvaluateBadges bool

	// BadgeGate, when set, limits badge evaluation to the users it accepts.
	BadgeGate func(userID string) bool

	Clock func() time.Time
}

// DefaultRecordActivityHandlerConfig returns default configuration.
func DefaultRecordActivityHandlerConfig() RecordActivityHandlerConfig {
	return RecordActivityHandlerConfig{
		EvaluateBadges: true,
		Clock:          time.Now,
	}
}

// NewRecordActivityHandler creates a new RecordActivityHandler.
func NewRecordActivityHandler(
	tx *stats.Transactor,
	xpEngine *xp.Engine,
	streakEngine *streak.Engine,
	badgeEngine *badge.Engine,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
	config RecordActivityHandlerConfig,
) *RecordActivityHandler {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}

	return &RecordActivityHandler{
		tx:             tx,
		xp:             xpEngine,
		streak:         streakEngine,
		badges:         badgeEngine,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("record_activity")),
		evaluateBadges: config.EvaluateBadges && badgeEngine != nil,
		badgeGate:      config.BadgeGate,
		clock:          config.Clock,
	}
}

// applied captures what one run of the mutation did. The mutation may be
// re-run on conflict, so it is rebuilt from scratch on every attempt.
type applied struct {
	multiplier     float64
	awarded        int
	oldLevel       int
	outcome        streak.Outcome
	freezesAwarded int
	bonusActivated bool
}

// Handle executes the record activity command.
func (h *RecordActivityHandler) Handle(ctx context.Context, cmd RecordActivityCommand) (*RecordActivityResult, error) {
	ctx, span := tracer.Start(ctx, "RecordActivity", trace.WithAttributes(
		attribute.String("user_id", cmd.UserID),
		attribute.String("activity_type", cmd.Type.String()),
	))
	defer span.End()

	log := h.log.With(logger.UserID(cmd.UserID), logger.ActivityType(cmd.Type.String()))
	if cmd.CorrelationID != "" {
		log = log.With(logger.CorrelationID(cmd.CorrelationID))
	}

	if err := cmd.Validate(); err != nil {
		return nil, h.fail(span, log, "validate", err)
	}

	at := cmd.OccurredAt
	if at.IsZero() {
		at = h.clock()
	}

	result := &RecordActivityResult{
		UserID:       cmd.UserID,
		ActivityType: cmd.Type,
		Multiplier:   1.0,
		RecordedAt:   at,
		Events:       make([]shared.Event, 0),
	}

	if !cmd.Type.IsKnown() {
		log.Warn("ignoring unknown activity type")
		span.SetAttributes(attribute.Bool("recognized", false))
		return result, nil
	}
	result.Recognized = true

	payload, err := activity.ParsePayload(cmd.Type, cmd.Payload)
	if err != nil {
		return nil, h.fail(span, log, "parse_payload", err)
	}

	base := h.xp.Compute(cmd.Type, payload)
	category := cmd.Type.Category()
	result.BaseXP = base

	var a applied
	create := func() *stats.UserStats {
		// Backdated first activities date the join from the activity.
		s := stats.New(cmd.UserID, at)
		s.Level, s.LevelTitle = h.xp.LevelFromXP(0)
		return s
	}

	doc, err := h.tx.Upsert(ctx, cmd.UserID, create, func(s *stats.UserStats) error {
		a = applied{}
		today := h.streak.StreakDay(at)

		h.streak.NormalizeWeek(&s.Streak, today)
		a.multiplier = h.xp.Multiplier(s.Streak, today)
		a.awarded = h.xp.ApplyBonus(base, s.Streak, today)

		a.outcome = h.streak.OnActivity(&s.Streak, at)

		oldXP := s.TotalXP
		s.TotalXP += a.awarded
		a.freezesAwarded = h.streak.AwardFreezes(&s.Streak, oldXP, s.TotalXP)

		a.oldLevel = s.Level
		s.Level, s.LevelTitle = h.xp.LevelFromXP(s.TotalXP)

		s.Increment(category)
		a.bonusActivated = h.streak.MarkCategory(&s.Streak, category, today)

		s.UpdatedAt = h.clock()
		return nil
	})
	if err != nil {
		return nil, h.fail(span, log, "commit_stats", err)
	}

	h.fillResult(result, doc, a)
	h.collectEvents(result, doc, a, cmd.CorrelationID, at)

	if h.evaluateBadges && (h.badgeGate == nil || h.badgeGate(cmd.UserID)) {
		unlocked, err := h.badges.CheckAndUnlock(ctx, cmd.UserID, doc, at)
		if err != nil {
			// Stats are committed; badge failures do not fail the activity.
			log.Error("badge evaluation incomplete", logger.Operation("check_badges"), logger.Err(err))
		}
		result.BadgesEarned = unlocked
		for _, u := range unlocked {
			ev := shared.BadgeEarnedEvent{
				BaseEvent:   shared.NewBaseEvent(shared.EventBadgeEarned, cmd.UserID, at).WithCorrelationID(cmd.CorrelationID),
				UserID:      cmd.UserID,
				BadgeID:     u.Definition.ID,
				BadgeName:   u.Definition.Name,
				Points:      u.Definition.Points,
				TimesEarned: u.TimesEarned,
			}
			result.Events = append(result.Events, ev)
		}
	}

	for _, event := range result.Events {
		if err := h.eventPublisher.Publish(event); err != nil {
			log.Warn("event publish failed", logger.String("event_type", string(event.EventType())), logger.Err(err))
		}
	}

	span.SetAttributes(
		attribute.Int("xp_awarded", result.XPAwarded),
		attribute.Int("streak_count", result.StreakCount),
	)
	log.Info("activity recorded",
		logger.XPAmount(result.XPAwarded),
		logger.Int("total_xp", result.NewTotalXP),
		logger.Int("streak_count", result.StreakCount),
		logger.Int("badges_earned", len(result.BadgesEarned)),
	)
	return result, nil
}

func (h *RecordActivityHandler) fillResult(r *RecordActivityResult, doc *stats.UserStats, a applied) {
	r.XPAwarded = a.awarded
	r.Multiplier = a.multiplier
	r.NewTotalXP = doc.TotalXP
	r.LeveledUp = doc.Level > a.oldLevel
	r.NewLevel = doc.Level
	r.LevelTitle = doc.LevelTitle
	r.StreakCount = doc.Streak.CurrentCount
	r.LongestStreak = doc.Streak.LongestStreak
	r.StreakCounted = a.outcome.Counted
	r.StreakBroken = a.outcome.Broken
	r.FreezeUsed = a.outcome.FreezeUsed
	r.FreezesAwarded = a.freezesAwarded
	r.FreezesAvailable = doc.Streak.FreezesAvailable
	r.BonusActivated = a.bonusActivated
	r.BonusActive = doc.Streak.BonusActive
}

func (h *RecordActivityHandler) collectEvents(r *RecordActivityResult, doc *stats.UserStats, a applied, correlationID string, at time.Time) {
	base := func(t shared.EventType) shared.BaseEvent {
		return shared.NewBaseEvent(t, doc.UserID, at).WithCorrelationID(correlationID)
	}

	if a.awarded > 0 {
		r.Events = append(r.Events, shared.XPGainedEvent{
			BaseEvent:    base(shared.EventXPGained),
			UserID:       doc.UserID,
			ActivityType: r.ActivityType.String(),
			BaseAmount:   r.BaseXP,
			Amount:       a.awarded,
			Multiplier:   a.multiplier,
			NewTotal:     doc.TotalXP,
		})
	}
	if r.LeveledUp {
		r.Events = append(r.Events, shared.LevelUpEvent{
			BaseEvent: base(shared.EventLevelUp),
			UserID:    doc.UserID,
			OldLevel:  a.oldLevel,
			NewLevel:  doc.Level,
			Title:     doc.LevelTitle,
		})
	}
	if a.outcome.FreezeUsed {
		r.Events = append(r.Events, shared.FreezeUsedEvent{
			BaseEvent:        base(shared.EventFreezeUsed),
			UserID:           doc.UserID,
			CoveredDay:       doc.Streak.LastFreezeDay.String(),
			FreezesRemaining: doc.Streak.FreezesAvailable,
			Source:           "activity",
		})
	}
	if a.outcome.Broken {
		r.Events = append(r.Events, shared.StreakBrokenEvent{
			BaseEvent:      base(shared.EventStreakBroken),
			UserID:         doc.UserID,
			PreviousStreak: a.outcome.PreviousCount,
			DaysMissed:     a.outcome.DaysMissed,
			Source:         "activity",
		})
	}
	if a.outcome.Counted {
		r.Events = append(r.Events, shared.StreakExtendedEvent{
			BaseEvent: base(shared.EventStreakExtended),
			UserID:    doc.UserID,
			Count:     doc.Streak.CurrentCount,
			Longest:   doc.Streak.LongestStreak,
			Day:       a.outcome.Day.String(),
		})
	}
	if a.freezesAwarded > 0 {
		r.Events = append(r.Events, shared.FreezesEarnedEvent{
			BaseEvent: base(shared.EventFreezesEarned),
			UserID:    doc.UserID,
			Earned:    a.freezesAwarded,
			Available: doc.Streak.FreezesAvailable,
		})
	}
	if a.bonusActivated {
		r.Events = append(r.Events, shared.WeeklyBonusActivatedEvent{
			BaseEvent:  base(shared.EventWeeklyBonusActivated),
			UserID:     doc.UserID,
			Multiplier: doc.Streak.BonusMultiplier,
			ActiveFrom: doc.Streak.WeekStart.String(),
			Until:      doc.Streak.BonusUntil.String(),
		})
	}
}

func (h *RecordActivityHandler) fail(span trace.Span, log *logger.Logger, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	log.Error("activity not recorded", logger.Operation(op), logger.Err(err))
	return fmt.Errorf("%w: %w", shared.ErrCouldNotRecord, err)
}
