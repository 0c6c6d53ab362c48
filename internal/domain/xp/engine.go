package xp

import (
	"fmt"
	"math"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/activity"
	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
	"github.com/TEJ42000/ALLMS-sub004/pkg/timeutil"
)

// Config configures the XP engine.
type Config struct {
	Rules         Rules
	Tiers         []Tier
	MaxMultiplier float64
}

// DefaultConfig returns the default XP engine configuration.
func DefaultConfig() Config {
	return Config{
		Rules:         DefaultRules(),
		Tiers:         DefaultTiers(),
		MaxMultiplier: 2.0,
	}
}

// Engine is a stateless XP calculator.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateTiers(cfg.Tiers); err != nil {
		return nil, err
	}
	if cfg.MaxMultiplier < 1.0 {
		return nil, fmt.Errorf("xp: max multiplier %.2f below 1.0", cfg.MaxMultiplier)
	}
	return &Engine{cfg: cfg}, nil
}

// Compute returns the base XP for an activity. Unknown types and payloads
// that do not match their type score 0.
func (e *Engine) Compute(t activity.Type, payload any) int {
	r := e.cfg.Rules
	switch t {
	case activity.TypeQuizCompleted:
		if p, ok := payload.(activity.QuizPayload); ok {
			return r.quiz(p)
		}
	case activity.TypeFlashcardReview:
		if p, ok := payload.(activity.FlashcardPayload); ok {
			return r.flashcard(p)
		}
	case activity.TypeEvaluationSubmitted:
		if p, ok := payload.(activity.EvaluationPayload); ok {
			return r.evaluation(p)
		}
	case activity.TypeGuideCompleted:
		return r.GuideXP
	}
	return 0
}

// ClampMultiplier bounds m to [1.0, MaxMultiplier].
func (e *Engine) ClampMultiplier(m float64) float64 {
	if math.IsNaN(m) || m < 1.0 {
		return 1.0
	}
	if m > e.cfg.MaxMultiplier {
		return e.cfg.MaxMultiplier
	}
	return m
}

// Multiplier returns the effective multiplier for streak s on day d.
func (e *Engine) Multiplier(s stats.Streak, d timeutil.Day) float64 {
	if !s.BonusInEffect(d) {
		return 1.0
	}
	return e.ClampMultiplier(s.BonusMultiplier)
}

// ApplyBonus scales base by the streak's weekly multiplier, rounding down.
func (e *Engine) ApplyBonus(base int, s stats.Streak, d timeutil.Day) int {
	if base <= 0 {
		return 0
	}
	m := e.Multiplier(s, d)
	if m == 1.0 {
		return base
	}
	// Round to 1e-9 first so products like 40*1.1 do not floor to 43.
	return int(math.Floor(math.Round(float64(base)*m*1e9) / 1e9))
}

// LevelFromXP maps a total onto a (level, title) pair.
func (e *Engine) LevelFromXP(total int) (int, string) {
	return levelFor(e.cfg.Tiers, total)
}

// Tiers returns a copy of the level ladder.
func (e *Engine) Tiers() []Tier {
	return append([]Tier(nil), e.cfg.Tiers...)
}

// Progress locates a total on the level ladder.
type Progress struct {
	Level      int
	Title      string
	CurrentMin int
	NextMin    int // 0 at the top tier
	ToNext     int
	Fraction   float64 // 0..1 through the current tier, 1 at the top
}

// Progress returns the ladder position for total.
func (e *Engine) Progress(total int) Progress {
	level, title := e.LevelFromXP(total)
	p := Progress{Level: level, Title: title, CurrentMin: e.cfg.Tiers[level-1].MinXP, Fraction: 1}
	if level == len(e.cfg.Tiers) {
		return p
	}
	p.NextMin = e.cfg.Tiers[level].MinXP
	p.ToNext = p.NextMin - total
	p.Fraction = float64(total-p.CurrentMin) / float64(p.NextMin-p.CurrentMin)
	return p
}
