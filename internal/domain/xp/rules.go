// Package xp computes experience points for learning activities and maps
// running totals onto level tiers.
package xp

import (
	"sort"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/activity"
)

// QuizRule scores one quiz difficulty.
type QuizRule struct {
	PassRatio    float64 // minimum correct/total for a pass
	PassXP       int
	FailXP       int
	PerfectBonus int
}

// FlashcardRule scores a flashcard review session.
type FlashcardRule struct {
	MinCorrect int // correct cards required for any credit
	BaseXP     int
	BlockSize  int // every further BlockSize correct cards earns BlockXP
	BlockXP    int
	MaxXP      int // 0 means uncapped
}

// GradeBand awards XP for evaluations graded at or above MinGrade.
type GradeBand struct {
	MinGrade float64
	XP       int
}

// Rules is the XP table for every activity type.
type Rules struct {
	Quiz       map[activity.Difficulty]QuizRule
	Flashcard  FlashcardRule
	Evaluation []GradeBand
	GuideXP    int
}

// DefaultRules returns the standard XP table.
func DefaultRules() Rules {
	return Rules{
		Quiz: map[activity.Difficulty]QuizRule{
			activity.DifficultyEasy:   {PassRatio: 0.6, PassXP: 10, FailXP: 2, PerfectBonus: 5},
			activity.DifficultyMedium: {PassRatio: 0.7, PassXP: 20, FailXP: 4, PerfectBonus: 5},
			activity.DifficultyHard:   {PassRatio: 0.7, PassXP: 30, FailXP: 6, PerfectBonus: 5},
		},
		Flashcard: FlashcardRule{
			MinCorrect: 10,
			BaseXP:     15,
			BlockSize:  10,
			BlockXP:    5,
			MaxXP:      50,
		},
		Evaluation: []GradeBand{
			{MinGrade: 9.0, XP: 50},
			{MinGrade: 7.0, XP: 35},
			{MinGrade: 5.5, XP: 20},
			{MinGrade: 0, XP: 5},
		},
		GuideXP: 30,
	}
}

func (r Rules) quiz(p activity.QuizPayload) int {
	rule, ok := r.Quiz[p.Difficulty]
	if !ok {
		return 0
	}
	if p.Score() < rule.PassRatio {
		return rule.FailXP
	}
	xp := rule.PassXP
	if p.Perfect() {
		xp += rule.PerfectBonus
	}
	return xp
}

func (r Rules) flashcard(p activity.FlashcardPayload) int {
	rule := r.Flashcard
	if p.Correct < rule.MinCorrect {
		return 0
	}
	xp := rule.BaseXP
	if rule.BlockSize > 0 {
		xp += (p.Correct - rule.MinCorrect) / rule.BlockSize * rule.BlockXP
	}
	if rule.MaxXP > 0 && xp > rule.MaxXP {
		xp = rule.MaxXP
	}
	return xp
}

func (r Rules) evaluation(p activity.EvaluationPayload) int {
	bands := append([]GradeBand(nil), r.Evaluation...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].MinGrade > bands[j].MinGrade })
	for _, b := range bands {
		if p.Grade >= b.MinGrade {
			return b.XP
		}
	}
	return 0
}
