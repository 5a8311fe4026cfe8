// Package scoring grades submitted answers and turns correct answers into points.
package scoring

import (
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

// IsCorrect reports whether answer matches any correct option of question,
// ignoring case and surrounding whitespace.
func IsCorrect(question domain.Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return false
	}
	for _, opt := range question.Options {
		if opt.Correct && strings.EqualFold(strings.TrimSpace(opt.Text), answer) {
			return true
		}
	}
	return false
}

// Policy converts a graded answer into points. Award is only called for correct answers.
type Policy interface {
	Award(question domain.Question, sc domain.ScoreContext) int
}

// Flat awards the question's point value.
type Flat struct{}

func (Flat) Award(question domain.Question, _ domain.ScoreContext) int {
	return question.Points
}

// TimeBonus adds BonusPerSecond for every whole second saved inside Window.
type TimeBonus struct {
	Window         time.Duration
	BonusPerSecond int
}

func (p TimeBonus) Award(question domain.Question, sc domain.ScoreContext) int {
	saved := p.Window - sc.Elapsed
	if saved <= 0 {
		return question.Points
	}
	return question.Points + int(saved/time.Second)*p.BonusPerSecond
}

// Streak multiplies the base points by 1 + Step per earlier correct answer, capped at Max.
type Streak struct {
	Step float64
	Max  float64
}

func (p Streak) Award(question domain.Question, sc domain.ScoreContext) int {
	multiplier := 1 + float64(sc.CorrectSoFar)*p.Step
	if multiplier > p.Max {
		multiplier = p.Max
	}
	return int(float64(question.Points) * multiplier)
}

// Rule is the domain.Scorer used by the attempt state machine.
type Rule struct {
	policy Policy
}

// NewRule wraps policy; a nil policy means Flat.
func NewRule(policy Policy) Rule {
	if policy == nil {
		policy = Flat{}
	}
	return Rule{policy: policy}
}

// Score grades answer and never awards points for an incorrect one.
func (r Rule) Score(question domain.Question, answer string, sc domain.ScoreContext) (bool, int) {
	if !IsCorrect(question, answer) {
		return false, 0
	}
	points := r.policy.Award(question, sc)
	if points < 0 {
		points = 0
	}
	return true, points
}

// ForQuiz returns the rule matching the quiz's scoring type.
func ForQuiz(quiz domain.Quiz) Rule {
	switch quiz.ScoringType {
	case domain.ScoringTimeBased:
		return NewRule(TimeBonus{Window: 30 * time.Second, BonusPerSecond: 2})
	case domain.ScoringStreak:
		return NewRule(Streak{Step: 0.1, Max: 3})
	default:
		return NewRule(Flat{})
	}
}
