// Package activity describes the learning activities that feed the
// gamification engines and the payloads each one carries.
package activity

import (
	"time"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/stats"
)

// Type identifies a learning activity.
type Type string

const (
	TypeQuizCompleted       Type = "quiz_completed"
	TypeFlashcardReview     Type = "flashcard_review"
	TypeEvaluationSubmitted Type = "evaluation_submitted"
	TypeGuideCompleted      Type = "guide_completed"
)

// Types lists every recognized activity type.
var Types = []Type{
	TypeQuizCompleted,
	TypeFlashcardReview,
	TypeEvaluationSubmitted,
	TypeGuideCompleted,
}

// IsKnown reports whether t is a recognized activity type.
func (t Type) IsKnown() bool {
	_, ok := t.category()
	return ok
}

// Category returns the counter and weekly-consistency category of t.
// Unknown types return the empty category.
func (t Type) Category() stats.Category {
	c, _ := t.category()
	return c
}

func (t Type) category() (stats.Category, bool) {
	switch t {
	case TypeQuizCompleted:
		return stats.CategoryQuiz, true
	case TypeFlashcardReview:
		return stats.CategoryFlashcard, true
	case TypeEvaluationSubmitted:
		return stats.CategoryEvaluation, true
	case TypeGuideCompleted:
		return stats.CategoryGuide, true
	}
	return "", false
}

func (t Type) String() string { return string(t) }

// Difficulty of a quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAYLOADS
// ══════════════════════════════════════════════════════════════════════════════

// QuizPayload is carried by quiz_completed.
type QuizPayload struct {
	QuizID     string     `mapstructure:"quiz_id" validate:"required"`
	Difficulty Difficulty `mapstructure:"difficulty" validate:"required,oneof=easy medium hard"`
	Correct    int        `mapstructure:"correct" validate:"gte=0,ltefield=Total"`
	Total      int        `mapstructure:"total" validate:"gt=0"`
}

// Score returns the fraction of correct answers.
func (p QuizPayload) Score() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Correct) / float64(p.Total)
}

// Perfect reports whether every answer was correct.
func (p QuizPayload) Perfect() bool {
	return p.Total > 0 && p.Correct == p.Total
}

// FlashcardPayload is carried by flashcard_review.
type FlashcardPayload struct {
	DeckID   string `mapstructure:"deck_id" validate:"required"`
	Reviewed int    `mapstructure:"reviewed" validate:"gt=0"`
	Correct  int    `mapstructure:"correct" validate:"gte=0,ltefield=Reviewed"`
}

// EvaluationPayload is carried by evaluation_submitted. Grade is on a 0-10 scale.
type EvaluationPayload struct {
	EvaluationID string  `mapstructure:"evaluation_id" validate:"required"`
	Grade        float64 `mapstructure:"grade" validate:"gte=0,lte=10"`
}

// GuidePayload is carried by guide_completed.
type GuidePayload struct {
	GuideID string `mapstructure:"guide_id" validate:"required"`
}

// Activity is a validated, typed activity occurrence.
type Activity struct {
	UserID     string
	Type       Type
	Payload    any
	OccurredAt time.Time
}
