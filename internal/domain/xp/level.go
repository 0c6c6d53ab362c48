package xp

import (
	"fmt"
)

// Tier is one rung of the level ladder.
type Tier struct {
	MinXP int
	Title string
}

// DefaultTiers returns the standard level ladder. Level N is Tiers[N-1].
func DefaultTiers() []Tier {
	return []Tier{
		{MinXP: 0, Title: "Novice"},
		{MinXP: 100, Title: "Apprentice"},
		{MinXP: 300, Title: "Student"},
		{MinXP: 600, Title: "Scholar"},
		{MinXP: 1000, Title: "Researcher"},
		{MinXP: 1500, Title: "Expert"},
		{MinXP: 2200, Title: "Master"},
		{MinXP: 3000, Title: "Sage"},
	}
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("xp: at least one level tier is required")
	}
	if tiers[0].MinXP != 0 {
		return fmt.Errorf("xp: first tier must start at 0 XP, got %d", tiers[0].MinXP)
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].MinXP <= tiers[i-1].MinXP {
			return fmt.Errorf("xp: tier %d threshold %d not above %d", i+1, tiers[i].MinXP, tiers[i-1].MinXP)
		}
	}
	return nil
}

// levelFor returns the 1-based level and title for total.
func levelFor(tiers []Tier, total int) (int, string) {
	level := 1
	for i, t := range tiers {
		if total >= t.MinXP {
			level = i + 1
		} else {
			break
		}
	}
	return level, tiers[level-1].Title
}
