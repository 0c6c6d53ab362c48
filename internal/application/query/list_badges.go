package query

import (
	"context"
	"sort"
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/badge"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST BADGES QUERY
// Returns the badges a user earned alongside the catalog.
// ══════════════════════════════════════════════════════════════════════════════

// ListBadgesQuery contains the parameters of the badge listing.
type ListBadgesQuery struct {
	UserID string

	// IncludeInactive also lists retired or not yet evaluable definitions.
	IncludeInactive bool
}

// Validate validates the query.
func (q ListBadgesQuery) Validate() error {
	_, err := shared.NewUserID(q.UserID)
	return err
}

// BadgeDTO is one catalog entry as seen by a user.
type BadgeDTO struct {
	ID          string         `json:"badge_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category"`
	Tier        string         `json:"tier,omitempty"`
	Points      int            `json:"points"`
	Criteria    map[string]int `json:"criteria"`
	Active      bool           `json:"active"`
	Repeatable  bool           `json:"repeatable"`

	Earned      bool       `json:"earned"`
	TimesEarned int        `json:"times_earned,omitempty"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
}

// BadgeListDTO is the result of ListBadgesQuery.
type BadgeListDTO struct {
	UserID      string     `json:"user_id"`
	Earned      []BadgeDTO `json:"earned"`
	Catalog     []BadgeDTO `json:"catalog"`
	TotalPoints int        `json:"total_points"`
}

// ListBadgesHandler handles ListBadgesQuery.
type ListBadgesHandler struct {
	repo badge.Repository
}

// NewListBadgesHandler creates a new ListBadgesHandler.
func NewListBadgesHandler(repo badge.Repository) *ListBadgesHandler {
	return &ListBadgesHandler{repo: repo}
}

// Handle executes the query.
func (h *ListBadgesHandler) Handle(ctx context.Context, q ListBadgesQuery) (*BadgeListDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	// Earned badges stay visible even when their definition was retired.
	defs, err := h.repo.ListDefinitions(ctx, true)
	if err != nil {
		return nil, err
	}
	owned, err := h.repo.ListUserBadges(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]badge.UserBadge, len(owned))
	for _, ub := range owned {
		byID[ub.BadgeID] = ub
	}

	out := &BadgeListDTO{
		UserID:  q.UserID,
		Earned:  make([]BadgeDTO, 0, len(owned)),
		Catalog: make([]BadgeDTO, 0, len(defs)),
	}
	for _, d := range defs {
		dto := BadgeDTO{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Category:    d.Category,
			Tier:        d.Tier,
			Points:      d.Points,
			Criteria:    d.Criteria,
			Active:      d.Evaluable(),
			Repeatable:  d.Repeatable,
		}
		if ub, ok := byID[d.ID]; ok {
			earnedAt := ub.EarnedAt
			dto.Earned = true
			dto.TimesEarned = ub.TimesEarned
			dto.EarnedAt = &earnedAt
			out.Earned = append(out.Earned, dto)
			out.TotalPoints += d.Points * ub.TimesEarned
		}
		// Definitions with unmeasurable criteria list as inactive even when stored active.
		if d.Evaluable() || q.IncludeInactive {
			out.Catalog = append(out.Catalog, dto)
		}
	}

	sort.SliceStable(out.Earned, func(i, j int) bool {
		return out.Earned[i].EarnedAt.Before(*out.Earned[j].EarnedAt)
	})
	return out, nil
}
